package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
)

// T9Charsets количество наборов букв T9 на клавиатуре.
const T9Charsets = 8

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("samplealigned", validateSampleAligned)
}

// validateSampleAligned проверяет, что длительность кратна периоду сэмпла
// соседнего поля SampleRateHz.
func validateSampleAligned(fl validator.FieldLevel) bool {
	parent := fl.Parent()
	if parent.Kind() == reflect.Pointer {
		parent = parent.Elem()
	}
	rate := parent.FieldByName("SampleRateHz")
	if !rate.IsValid() || rate.Int() <= 0 {
		return false
	}
	period := time.Second / time.Duration(rate.Int())
	return time.Duration(fl.Field().Int())%period == 0
}

// Validate проверяет согласованность конфигурации.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	var errs []error
	if c.GridSize*c.GridSize < T9Charsets+2 {
		errs = append(errs, fmt.Errorf("config: клавиатура %dx%d не вмещает %d наборов T9 и команды сброса/отмены", c.GridSize, c.GridSize, T9Charsets))
	}
	t := c.Timing
	if t.SamplePeriod() <= 0 {
		errs = append(errs, fmt.Errorf("config: частота %d Гц выше разрешения таймера", t.SampleRateHz))
	} else {
		derived := t.Samples(t.FlashDuration + t.BreakDuration)
		if t.EpochStrideSamples != 0 && t.EpochStrideSamples != derived {
			errs = append(errs, fmt.Errorf("config: шаг эпохи %d не совпадает с flash+break = %d сэмплов", t.EpochStrideSamples, derived))
		}
		if t.Stride() <= 0 {
			errs = append(errs, errors.New("config: нулевой шаг эпохи"))
		}
	}
	if c.Acquisition.Source == "websocket" && c.Acquisition.URL == "" {
		errs = append(errs, errors.New("config: для источника websocket нужен ACQUISITION_URL"))
	}
	if c.UIServer.Enabled && c.UIServer.BindAddr == "" {
		errs = append(errs, errors.New("config: не задан адрес UI моста"))
	}
	if c.Session.Target >= c.GridSize*c.GridSize {
		errs = append(errs, fmt.Errorf("config: целевая ячейка %d вне сетки", c.Session.Target))
	}
	return errors.Join(errs...)
}
