package voice

import (
	"context"
	"time"

	gctts "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"go.uber.org/zap"

	"BCISpeller/internal/config"
)

// GoogleTTS синтез речи через Google Cloud Text-to-Speech. Учётные данные
// берутся SDK из GOOGLE_APPLICATION_CREDENTIALS.
type GoogleTTS struct {
	client *gctts.Client
	cfg    config.VoiceConfig
	logger *zap.SugaredLogger
}

func NewGoogleTTS(ctx context.Context, cfg config.VoiceConfig, logger *zap.SugaredLogger) (*GoogleTTS, error) {
	client, err := gctts.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleTTS{client: client, cfg: cfg, logger: logger}, nil
}

// Synthesize возвращает MP3.
func (g *GoogleTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	req := &ttspb.SynthesizeSpeechRequest{
		Input: &ttspb.SynthesisInput{InputSource: &ttspb.SynthesisInput_Text{Text: text}},
		Voice: &ttspb.VoiceSelectionParams{
			LanguageCode: g.cfg.Language,
			Name:         g.cfg.Voice,
		},
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding: ttspb.AudioEncoding_MP3,
			SpeakingRate:  g.cfg.SpeakingRate,
			VolumeGainDb:  g.cfg.VolumeGainDb,
		},
	}
	started := time.Now()
	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, err
	}
	g.logger.Debugw("Google TTS synthesize completed", "took", time.Since(started).String(), "bytes", len(resp.GetAudioContent()))
	return resp.GetAudioContent(), nil
}

func (g *GoogleTTS) Close() error { return g.client.Close() }
