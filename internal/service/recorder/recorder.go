// Package recorder пишет сырые сэмплы trial с отметками вспышек в CSV, по
// файлу на сессию, и YAML с параметрами рядом.
package recorder

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"BCISpeller/internal/service/epoch"
	"BCISpeller/internal/service/flashing"
	"BCISpeller/internal/service/state"
)

// Layout что нужно знать о записи помимо самих данных.
type Layout struct {
	GridSize        int           `yaml:"grid_size"`
	Strategy        string        `yaml:"strategy"`
	Channels        int           `yaml:"channels"`
	SampleRateHz    int           `yaml:"sample_rate_hz"`
	FlashDuration   time.Duration `yaml:"flash_duration"`
	BreakDuration   time.Duration `yaml:"break_duration"`
	BaselineSamples int           `yaml:"baseline_samples"`
	EpochSize       int           `yaml:"epoch_size"`
	Stride          int           `yaml:"stride"`
}

// Meta содержимое YAML-файла сессии.
type Meta struct {
	ID      string       `yaml:"id"`
	Started time.Time    `yaml:"started"`
	Session state.Params `yaml:"session"`
	Layout  Layout       `yaml:"layout"`
}

type event struct {
	begin   *state.Params
	end     bool
	samples []epoch.Sample
	seq     flashing.Sequence
}

// Recorder пишет асинхронно: методы не блокируют горутину сессии, при
// переполнении очереди событие теряется с предупреждением.
type Recorder struct {
	dir    string
	layout Layout
	events chan event
	logger *zap.SugaredLogger

	// Дальше только горутина Run
	file     *os.File
	csv      *csv.Writer
	name     string
	samplesQ [][]epoch.Sample
	seqQ     []flashing.Sequence
}

func New(dir string, layout Layout, logger *zap.SugaredLogger) *Recorder {
	return &Recorder{
		dir:    dir,
		layout: layout,
		events: make(chan event, 64),
		logger: logger,
	}
}

func (r *Recorder) RecordSamples(samples []epoch.Sample) {
	r.send(event{samples: samples})
}

func (r *Recorder) RecordFlashingSequence(seq flashing.Sequence) {
	r.send(event{seq: seq})
}

// SessionStarted открывает новый файл.
func (r *Recorder) SessionStarted(params state.Params) {
	r.send(event{begin: &params})
}

func (r *Recorder) SessionFinished() {
	r.send(event{end: true})
}

func (r *Recorder) send(e event) {
	select {
	case r.events <- e:
	default:
		r.logger.Warnw("Recorder queue full, event dropped", "samples", len(e.samples), "steps", len(e.seq))
	}
}

// Run пишет события до отмены ctx, затем дописывает очередь и закрывает файл.
func (r *Recorder) Run(ctx context.Context) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create records dir: %w", err)
	}
	defer r.closeFile()

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-r.events:
					r.handle(e)
				default:
					return nil
				}
			}
		case e := <-r.events:
			r.handle(e)
		}
	}
}

func (r *Recorder) handle(e event) {
	switch {
	case e.begin != nil:
		if err := r.open(*e.begin); err != nil {
			r.logger.Errorw("Failed to open record file", "error", err)
		}
	case e.end:
		r.closeFile()
	case e.samples != nil:
		r.samplesQ = append(r.samplesQ, e.samples)
	case e.seq != nil:
		r.seqQ = append(r.seqQ, e.seq)
	}

	for len(r.samplesQ) > 0 && len(r.seqQ) > 0 {
		samples, seq := r.samplesQ[0], r.seqQ[0]
		r.samplesQ, r.seqQ = r.samplesQ[1:], r.seqQ[1:]
		if err := r.write(samples, seq); err != nil {
			r.logger.Errorw("Failed to write trial", "file", r.name, "error", err)
		}
	}
}

func (r *Recorder) open(params state.Params) error {
	r.closeFile()

	meta := Meta{ID: uuid.NewString(), Started: time.Now(), Session: params, Layout: r.layout}
	base := fmt.Sprintf("%s_%s_%s", meta.Started.Format("20060102-150405"), safeName(params.Name), meta.ID[:8])

	f, err := os.Create(filepath.Join(r.dir, base+".csv"))
	if err != nil {
		return err
	}
	r.file = f
	r.csv = csv.NewWriter(f)
	r.name = f.Name()
	if err := r.csv.Write(header(r.layout.Channels)); err != nil {
		return err
	}
	r.csv.Flush()

	data, err := yaml.Marshal(meta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(r.dir, base+".yaml"), data, 0o644); err != nil {
		return err
	}
	r.logger.Infow("Recording session", "file", r.name, "id", meta.ID)
	return nil
}

func (r *Recorder) closeFile() {
	if r.file == nil {
		return
	}
	r.csv.Flush()
	if err := r.csv.Error(); err != nil {
		r.logger.Warnw("Record flush failed", "file", r.name, "error", err)
	}
	if err := r.file.Close(); err != nil {
		r.logger.Warnw("Record close failed", "file", r.name, "error", err)
	}
	r.file, r.csv = nil, nil
	// Непарные данные прошлой сессии в новый файл не переносим
	r.samplesQ, r.seqQ = nil, nil
}

// write строки trial: FLASH=1 на сэмпле начала каждой вспышки, ITEM —
// первая ячейка вспышки как row*n+col.
func (r *Recorder) write(samples []epoch.Sample, seq flashing.Sequence) error {
	if r.csv == nil {
		r.logger.Warnw("Trial recorded outside of session, skipped", "samples", len(samples))
		return nil
	}
	flash := make([]int, len(samples))
	item := make([]int, len(samples))
	for k, l := range seq {
		i := r.layout.BaselineSamples + k*r.layout.Stride
		if i >= len(samples) || len(l) == 0 {
			continue
		}
		flash[i] = 1
		item[i] = l[0].Row*r.layout.GridSize + l[0].Col
	}

	row := make([]string, 0, r.layout.Channels+2)
	for i, s := range samples {
		row = row[:0]
		for _, v := range s {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		row = append(row, strconv.Itoa(flash[i]), strconv.Itoa(item[i]))
		if err := r.csv.Write(row); err != nil {
			return err
		}
	}
	r.csv.Flush()
	return r.csv.Error()
}

func header(channels int) []string {
	h := make([]string, 0, channels+2)
	for i := range channels {
		h = append(h, fmt.Sprintf("EEG %d", i+1))
	}
	return append(h, "FLASH", "ITEM")
}

func safeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return r
		}
		return '_'
	}, name)
	if name == "" {
		return "session"
	}
	return name
}

// Nop ничего не пишет.
type Nop struct{}

func (Nop) RecordSamples([]epoch.Sample)             {}
func (Nop) RecordFlashingSequence(flashing.Sequence) {}
func (Nop) SessionStarted(state.Params)              {}
func (Nop) SessionFinished()                         {}
