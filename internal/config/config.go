package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	DebugMode bool `env:"DEBUG_MODE"` // Режим дебага
	LogJSON   bool `env:"LOG_JSON"`   // JSON-логи (production encoder), иначе development

	// Сетка и стратегия мигания
	GridSize    int    `env:"GRID_SIZE" validate:"min=2,max=10"`                // Размер квадратной клавиатуры n×n
	Strategy    string `env:"FLASHING_STRATEGY" validate:"oneof=single rowcol"` // single|rowcol
	Repetitions int    `env:"REPETITIONS" validate:"min=1"`                     // Повторений на один trial
	CycleLimit  int    `env:"CYCLE_LIMIT" validate:"min=0"`                     // Сколько trial в сессии; 0 — без ограничения

	// Тайминги. Все длительности должны быть кратны периоду сэмпла.
	Timing TimingConfig

	// Источник сэмплов
	Acquisition AcquisitionConfig

	MaxSuggestions int `env:"MAX_SUGGESTIONS" validate:"min=0"` // Максимум подсказок

	// Параметры сессии по умолчанию (перекрываются при старте из UI)
	Session SessionConfig

	RecordsDir string `env:"RECORDS_DIR"` // Папка для записи сэмплов; пусто — запись отключена

	UIServer   UIServerConfig
	Dictionary DictionaryConfig
	LLM        LLMConfig
	Voice      VoiceConfig
	Sounds     SoundsConfig
}

// TimingConfig параметры расписания стимулов и нарезки эпох.
type TimingConfig struct {
	SampleRateHz       int           `env:"SAMPLE_RATE_HZ" validate:"min=1"`
	FlashDuration      time.Duration `env:"FLASH_DURATION" validate:"gt=0,samplealigned"`
	BreakDuration      time.Duration `env:"BREAK_DURATION" validate:"min=0,samplealigned"`
	BaselineDuration   time.Duration `env:"BASELINE_DURATION" validate:"min=0,samplealigned"`
	EpochSizeSamples   int           `env:"EPOCH_SIZE_SAMPLES" validate:"min=1"`
	EpochStrideSamples int           `env:"EPOCH_STRIDE_SAMPLES" validate:"min=0"` // 0 — вычисляется из flash+break
	SampleTimeout      time.Duration `env:"SAMPLE_TIMEOUT" validate:"gt=0"`        // Сколько ждать очередной сэмпл
	IdlePoll           time.Duration `env:"IDLE_POLL" validate:"gt=0"`             // Интервал ожидания старта сессии
}

// AcquisitionConfig источник ЭЭГ-сэмплов.
type AcquisitionConfig struct {
	Source     string `env:"ACQUISITION_SOURCE" validate:"oneof=stub websocket"` // stub|websocket
	URL        string `env:"ACQUISITION_URL" validate:"omitempty,url"`
	Channels   int    `env:"ACQUISITION_CHANNELS" validate:"min=1"`
	BufferSize int    `env:"ACQUISITION_BUFFER" validate:"min=1"` // Ёмкость очереди сэмплов
}

// SessionConfig параметры эксперимента по умолчанию.
type SessionConfig struct {
	Name    string `env:"SESSION_NAME"`
	Comment string `env:"SESSION_COMMENT"`
	Target  int    `env:"SESSION_TARGET" validate:"min=-1"` // Индекс целевой ячейки; -1 — не задан
}

// UIServerConfig HTTP/WebSocket мост для интерфейса.
type UIServerConfig struct {
	Enabled      bool    `env:"UI_SERVER_ENABLED"`
	BindAddr     string  `env:"UI_SERVER_BIND_ADDR" validate:"omitempty,hostname_port"`
	SnapshotRate float64 `env:"UI_SNAPSHOT_RATE" validate:"gt=0"` // Снимков в секунду на одно ws-соединение
}

// DictionaryConfig частотный словарь для T9.
type DictionaryConfig struct {
	Path  string `env:"DICTIONARY_PATH"` // Пусто — используется перебор комбинаций
	Watch bool   `env:"DICTIONARY_WATCH"`
}

// LLMConfig продолжение текста через OpenAI. Ключ читается SDK из OPENAI_API_KEY.
type LLMConfig struct {
	Enabled  bool   `env:"LLM_ENABLED"`
	Model    string `env:"LLM_MODEL" validate:"required_if=Enabled true"`    // stub — без запросов к OpenAI
	Template string `env:"LLM_TEMPLATE" validate:"required_if=Enabled true"` // %[1]s — текст, %[2]d — количество
}

// VoiceConfig озвучка набранных слов через Google Cloud Text-to-Speech.
type VoiceConfig struct {
	Enabled         bool    `env:"VOICE_ENABLED"`
	CredentialsPath string  `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	Language        string  `env:"VOICE_LANGUAGE"`
	Voice           string  `env:"VOICE_NAME"`
	SpeakingRate    float64 `env:"VOICE_SPEAKING_RATE" validate:"min=0"`
	VolumeGainDb    float64 `env:"VOICE_VOLUME_DB" validate:"min=-96,max=16"`
}

// SoundsConfig звуковые сигналы начала и конца сессии.
type SoundsConfig struct {
	Enabled   bool   `env:"SOUNDS_ENABLED"`
	StartPath string `env:"SOUND_START_PATH"`
	EndPath   string `env:"SOUND_END_PATH"`
}

// SamplePeriod длительность одного сэмпла.
func (t TimingConfig) SamplePeriod() time.Duration {
	return time.Second / time.Duration(t.SampleRateHz)
}

// Samples переводит длительность в количество сэмплов.
func (t TimingConfig) Samples(d time.Duration) int {
	return int(d / t.SamplePeriod())
}

// Stride шаг окна в сэмплах: явный или flash+break.
func (t TimingConfig) Stride() int {
	if t.EpochStrideSamples > 0 {
		return t.EpochStrideSamples
	}
	return t.Samples(t.FlashDuration + t.BreakDuration)
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode:   false,
		GridSize:    4,
		Strategy:    "single",
		Repetitions: 2,
		CycleLimit:  10,
		Timing: TimingConfig{
			SampleRateHz:     250, // 4 мс на сэмпл
			FlashDuration:    76 * time.Millisecond,
			BreakDuration:    100 * time.Millisecond,
			BaselineDuration: 200 * time.Millisecond,
			EpochSizeSamples: 200, // 800 мс: 200 мс до вспышки + 600 мс после
			SampleTimeout:    time.Second,
			IdlePoll:         time.Second,
		},
		Acquisition: AcquisitionConfig{
			Source:     "stub",
			Channels:   8,
			BufferSize: 250 * 60,
		},
		MaxSuggestions: 6,
		Session: SessionConfig{
			Name:   "session",
			Target: -1,
		},
		UIServer: UIServerConfig{
			Enabled:      true,
			BindAddr:     "127.0.0.1:8080",
			SnapshotRate: 30,
		},
		LLM: LLMConfig{
			Model:    "gpt-4o-mini",
			Template: "Продолжи текст «%[1]s». Дай %[2]d вариантов следующего слова, по одному на строке, с номерами.",
		},
		Voice: VoiceConfig{
			CredentialsPath: "service-account.json",
			Language:        "ru-RU",
			Voice:           "ru-RU-Standard-A",
			SpeakingRate:    1.0,
		},
		Sounds: SoundsConfig{
			StartPath: "sound/start.mp3",
			EndPath:   "sound/finish.mp3",
		},
	}
}

// NewConfig загружает конфигурацию приложения.
func NewConfig() *Config {
	_ = godotenv.Load()

	// Стартуем с дефолтов, затем перекрываем .env/окружением и флагами
	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		panic(fmt.Errorf("config: разбор окружения: %w", err))
	}

	flag.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага")
	flag.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "писать логи в JSON")
	flag.IntVar(&cfg.GridSize, "grid-size", cfg.GridSize, "размер клавиатуры n×n")
	flag.StringVar(&cfg.Strategy, "strategy", cfg.Strategy, "стратегия мигания: single|rowcol")
	flag.IntVar(&cfg.Repetitions, "repetitions", cfg.Repetitions, "повторений в одном trial")
	flag.IntVar(&cfg.CycleLimit, "cycle-limit", cfg.CycleLimit, "trial в сессии, 0 — без ограничения")
	// Тайминги
	flag.IntVar(&cfg.Timing.SampleRateHz, "sample-rate", cfg.Timing.SampleRateHz, "частота дискретизации, Гц")
	flag.DurationVar(&cfg.Timing.FlashDuration, "flash-duration", cfg.Timing.FlashDuration, "длительность вспышки, напр. 76ms")
	flag.DurationVar(&cfg.Timing.BreakDuration, "break-duration", cfg.Timing.BreakDuration, "пауза между вспышками, напр. 100ms")
	flag.DurationVar(&cfg.Timing.BaselineDuration, "baseline-duration", cfg.Timing.BaselineDuration, "пауза перед первой вспышкой")
	flag.IntVar(&cfg.Timing.EpochSizeSamples, "epoch-size", cfg.Timing.EpochSizeSamples, "размер эпохи в сэмплах")
	flag.IntVar(&cfg.Timing.EpochStrideSamples, "epoch-stride", cfg.Timing.EpochStrideSamples, "шаг эпохи в сэмплах, 0 — flash+break")
	flag.DurationVar(&cfg.Timing.SampleTimeout, "sample-timeout", cfg.Timing.SampleTimeout, "таймаут ожидания сэмпла")
	flag.DurationVar(&cfg.Timing.IdlePoll, "idle-poll", cfg.Timing.IdlePoll, "интервал ожидания старта сессии")
	// Источник
	flag.StringVar(&cfg.Acquisition.Source, "acquisition-source", cfg.Acquisition.Source, "источник сэмплов: stub|websocket")
	flag.StringVar(&cfg.Acquisition.URL, "acquisition-url", cfg.Acquisition.URL, "ws:// адрес моста устройства")
	flag.IntVar(&cfg.Acquisition.Channels, "acquisition-channels", cfg.Acquisition.Channels, "количество каналов")
	flag.IntVar(&cfg.MaxSuggestions, "max-suggestions", cfg.MaxSuggestions, "максимум подсказок")
	// Сессия
	flag.StringVar(&cfg.Session.Name, "session-name", cfg.Session.Name, "имя сессии")
	flag.StringVar(&cfg.Session.Comment, "session-comment", cfg.Session.Comment, "комментарий к сессии")
	flag.IntVar(&cfg.Session.Target, "session-target", cfg.Session.Target, "индекс целевой ячейки (для записи)")
	flag.StringVar(&cfg.RecordsDir, "records-dir", cfg.RecordsDir, "папка для CSV-записей, пусто — не писать")
	// UI
	flag.BoolVar(&cfg.UIServer.Enabled, "ui-server-enabled", cfg.UIServer.Enabled, "включить HTTP/WebSocket мост")
	flag.StringVar(&cfg.UIServer.BindAddr, "ui-server-bind-addr", cfg.UIServer.BindAddr, "адрес моста, напр. 127.0.0.1:8080")
	flag.Float64Var(&cfg.UIServer.SnapshotRate, "ui-snapshot-rate", cfg.UIServer.SnapshotRate, "снимков состояния в секунду")
	// Подсказки
	flag.StringVar(&cfg.Dictionary.Path, "dictionary-path", cfg.Dictionary.Path, "файл частотного словаря")
	flag.BoolVar(&cfg.Dictionary.Watch, "dictionary-watch", cfg.Dictionary.Watch, "перечитывать словарь при изменении")
	flag.BoolVar(&cfg.LLM.Enabled, "llm-enabled", cfg.LLM.Enabled, "подсказки следующего слова через OpenAI")
	flag.StringVar(&cfg.LLM.Model, "llm-model", cfg.LLM.Model, "модель OpenAI")
	// Голос и звуки
	flag.BoolVar(&cfg.Voice.Enabled, "voice-enabled", cfg.Voice.Enabled, "озвучивать набранные слова")
	flag.StringVar(&cfg.Voice.CredentialsPath, "voice-credentials", cfg.Voice.CredentialsPath, "путь к service-account.json")
	flag.StringVar(&cfg.Voice.Language, "voice-language", cfg.Voice.Language, "язык синтеза")
	flag.StringVar(&cfg.Voice.Voice, "voice-name", cfg.Voice.Voice, "голос синтеза")
	flag.BoolVar(&cfg.Sounds.Enabled, "sounds-enabled", cfg.Sounds.Enabled, "звуковые сигналы начала/конца сессии")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}
