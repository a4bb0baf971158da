// Package emulator статистическая оценка точности выбора в зависимости от
// числа повторений при заданной чувствительности и специфичности классификатора.
package emulator

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"BCISpeller/internal/service/flashing"
)

// Params параметры прогона.
type Params struct {
	Strategy  string
	GridSize  int
	TP        float64 // вероятность единицы на целевом шаге
	TN        float64 // вероятность нуля на нецелевом шаге
	MinReps   int
	MaxReps   int
	Trials    int
	Threshold float64
	Seed      uint64
	Step      time.Duration // flash + break
	Baseline  time.Duration
	Workers   int
}

// Point точность для одного числа повторений.
type Point struct {
	Repetitions int
	Accuracy    float64
	TrialTime   time.Duration
}

type Result struct {
	Points []Point
	// MinReps наименьшее число повторений с точностью не ниже порога, 0 — не достигнуто.
	MinReps int
}

// Best точка MinReps.
func (r Result) Best() (Point, bool) {
	i := slices.IndexFunc(r.Points, func(p Point) bool { return p.Repetitions == r.MinReps })
	if i < 0 {
		return Point{}, false
	}
	return r.Points[i], true
}

func (p Params) validate() error {
	var errs []error
	if p.GridSize < 2 {
		errs = append(errs, errors.New("grid size must be at least 2"))
	}
	if p.MinReps < 1 || p.MaxReps < p.MinReps {
		errs = append(errs, errors.New("repetitions range must satisfy 1 <= min <= max"))
	}
	if p.Trials < 1 {
		errs = append(errs, errors.New("trials must be positive"))
	}
	if p.TP < 0 || p.TP > 1 || p.TN < 0 || p.TN > 1 {
		errs = append(errs, errors.New("tp and tn must be within [0, 1]"))
	}
	if _, err := flashing.New(p.Strategy, max(p.GridSize, 2), nil); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run считает точки параллельно, результат детерминирован при одинаковом Seed.
func Run(ctx context.Context, p Params) (Result, error) {
	if err := p.validate(); err != nil {
		return Result{}, err
	}
	points := make([]Point, p.MaxReps-p.MinReps+1)

	g, ctx := errgroup.WithContext(ctx)
	if p.Workers > 0 {
		g.SetLimit(p.Workers)
	}
	for i := range points {
		reps := p.MinReps + i
		g.Go(func() error {
			pt, err := runOption(ctx, p, reps)
			points[i] = pt
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Points: points}
	for _, pt := range points {
		if pt.Accuracy >= p.Threshold {
			res.MinReps = pt.Repetitions
			break
		}
	}
	return res, nil
}

func runOption(ctx context.Context, p Params, reps int) (Point, error) {
	rng := rand.New(rand.NewPCG(p.Seed, uint64(reps)))
	strategy, err := flashing.New(p.Strategy, p.GridSize, rng)
	if err != nil {
		return Point{}, err
	}

	hits, steps := 0, 0
	for range p.Trials {
		if err := ctx.Err(); err != nil {
			return Point{}, err
		}
		target := flashing.Position{Row: rng.IntN(p.GridSize), Col: rng.IntN(p.GridSize)}
		seq := strategy.Generate(reps)
		steps = len(seq)

		scores := make([]float64, len(seq))
		for i, l := range seq {
			prob := 1 - p.TN
			if slices.Contains(l, target) {
				prob = p.TP
			}
			if rng.Float64() < prob {
				scores[i] = 1
			}
		}
		if strategy.Decode(seq, scores) == target {
			hits++
		}
	}
	return Point{
		Repetitions: reps,
		Accuracy:    float64(hits) / float64(p.Trials),
		TrialTime:   p.Baseline + time.Duration(steps)*p.Step,
	}, nil
}
