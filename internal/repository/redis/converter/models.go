package converter

type AnalysisRedisModel struct {
	Description string   `json:"description"`
	Suggestions []string `json:"suggestions"`
	CachedAt    int64    `json:"cached_at"`
}
