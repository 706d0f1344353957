package domain

// Analysis — описание изображения и подсказки аксессуаров от генеративной модели.
type Analysis struct {
	Description string   `json:"description"`
	Suggestions []string `json:"suggestions"`
}

func NewAnalysis(description string, suggestions []string) *Analysis {
	if suggestions == nil {
		suggestions = []string{}
	}

	return &Analysis{
		Description: description,
		Suggestions: suggestions,
	}
}
