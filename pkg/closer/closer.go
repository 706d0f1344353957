package closer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Closer обеспечивает потокобезопасное закрытие ресурсов приложения:
// HTTP и gRPC серверов, пулов соединений, продюсера событий.
type Closer struct {
	funcs         []namedFunc
	mu            sync.Mutex
	once          sync.Once
	forcedTimeout time.Duration
}

// Func — сигнатура функции закрытия ресурса.
type Func func(ctx context.Context) error

type namedFunc struct {
	name string
	f    Func
}

// NewCloser создает новый экземпляр Closer.
// forcedTimeout — время, отводимое на принудительное закрытие всех ресурсов при таймауте контекста в Close.
func NewCloser(forcedTimeout time.Duration) *Closer {
	const (
		defaultForcedTimeout = 2 * time.Second
	)

	if forcedTimeout == 0 {
		forcedTimeout = defaultForcedTimeout
	}

	return &Closer{
		forcedTimeout: forcedTimeout,
	}
}

// Add добавляет функцию в список закрытия. name попадает в текст ошибки.
func (c *Closer) Add(name string, f Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs = append(c.funcs, namedFunc{name: name, f: f})
}

// AddErr регистрирует Close() error без контекста (клиенты Redis, Qdrant, Kafka).
func (c *Closer) AddErr(name string, f func() error) {
	c.Add(name, func(context.Context) error { return f() })
}

// Close закрывает зарегистрированные ресурсы в обратном порядке (LIFO).
// Если ctx истекает раньше, ещё не закрытые ресурсы закрываются параллельно с forcedTimeout.
// Повторные вызовы ничего не делают.
func (c *Closer) Close(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		funcs := c.funcs
		c.mu.Unlock()

		closed, errs := c.gracefulClose(ctx, funcs)
		if closed == len(funcs) {
			err = errors.Join(errs...)
			return
		}

		errs = append(errs, c.forcedClose(funcs[:len(funcs)-closed])...)
		err = fmt.Errorf("shutdown interrupted after %d/%d funcs: %w", closed, len(funcs), errors.Join(errs...))
	})

	return err
}

// gracefulClose возвращает количество закрытых ресурсов и их ошибки.
// Ресурс, на котором истёк ctx, закрытым не считается.
func (c *Closer) gracefulClose(ctx context.Context, funcs []namedFunc) (int, []error) {
	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		nf := funcs[i]
		done := make(chan error, 1)
		go func() { done <- nf.f(ctx) }()

		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, &CloseError{Name: nf.name, Err: err})
			}
		case <-ctx.Done():
			return len(funcs) - 1 - i, errs
		}
	}

	return len(funcs), errs
}

func (c *Closer) forcedClose(funcs []namedFunc) []error {
	ctx, cancel := context.WithTimeout(context.Background(), c.forcedTimeout)
	defer cancel()

	errs := make([]error, len(funcs))
	var wg sync.WaitGroup
	for i, nf := range funcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := nf.f(ctx); err != nil {
				errs[i] = &CloseError{Name: nf.name, Forced: true, Err: err}
			}
		}()
	}
	wg.Wait()

	return slices.DeleteFunc(errs, func(err error) bool { return err == nil })
}

// CloseError — ошибка закрытия одного ресурса.
type CloseError struct {
	Name   string
	Forced bool
	Err    error
}

func (e *CloseError) Error() string {
	if e.Forced {
		return fmt.Sprintf("[FORCED] %s: %v", e.Name, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *CloseError) Unwrap() error {
	return e.Err
}
