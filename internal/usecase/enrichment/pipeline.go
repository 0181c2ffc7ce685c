package enrichment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"advent-calendar/internal/domain"
)

// Stage — этап обработки аудио.
type Stage string

const (
	StageDecode     Stage = "decode"
	StageTranscribe Stage = "transcribe"
	StageRefine     Stage = "refine"
)

// StageError сообщает, на каком этапе упала обработка.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("этап %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// AudioInput содержит аудио в base64, как его присылает админка.
type AudioInput struct {
	Audio    string `json:"audio" validate:"required"`
	MIMEType string `json:"mimeType"`
}

// Result содержит итог двух этапов.
type Result struct {
	TranscribedText string `json:"transcribedText"`
	RefinedText     string `json:"refinedText"`
}

// Pipeline последовательно распознаёт речь и правит текст.
type Pipeline struct {
	transcriber domain.Transcriber
	refiner     domain.Refiner
	log         zerolog.Logger
}

func NewPipeline(transcriber domain.Transcriber, refiner domain.Refiner, log zerolog.Logger) *Pipeline {
	return &Pipeline{transcriber: transcriber, refiner: refiner, log: log}
}

// Transcribe выполняет только распознавание.
func (p *Pipeline) Transcribe(ctx context.Context, in AudioInput) (domain.Transcript, error) {
	clip, err := decodeAudio(in)
	if err != nil {
		return domain.Transcript{}, &StageError{Stage: StageDecode, Err: err}
	}
	if p.transcriber == nil {
		return domain.Transcript{}, &StageError{Stage: StageTranscribe, Err: fmt.Errorf("%w: распознавание не настроено", domain.ErrUpstream)}
	}
	t, err := p.transcriber.Transcribe(ctx, clip)
	if err != nil {
		return domain.Transcript{}, &StageError{Stage: StageTranscribe, Err: err}
	}
	t.Text = strings.TrimSpace(t.Text)
	if t.Text == "" {
		return domain.Transcript{}, &StageError{Stage: StageTranscribe, Err: fmt.Errorf("%w: пустой результат распознавания", domain.ErrUpstream)}
	}
	return t, nil
}

// Refine выполняет только литературную правку.
func (p *Pipeline) Refine(ctx context.Context, t domain.Transcript) (domain.RefinedText, error) {
	t.Text = strings.TrimSpace(t.Text)
	if t.Text == "" {
		return domain.RefinedText{}, &StageError{Stage: StageRefine, Err: fmt.Errorf("%w: нет текста для правки", domain.ErrValidation)}
	}
	if p.refiner == nil {
		return domain.RefinedText{}, &StageError{Stage: StageRefine, Err: fmt.Errorf("%w: правка не настроена", domain.ErrUpstream)}
	}
	r, err := p.refiner.Refine(ctx, t)
	if err != nil {
		return domain.RefinedText{}, &StageError{Stage: StageRefine, Err: err}
	}
	r.Text = strings.TrimSpace(r.Text)
	if r.Text == "" {
		return domain.RefinedText{}, &StageError{Stage: StageRefine, Err: fmt.Errorf("%w: пустой результат правки", domain.ErrUpstream)}
	}
	return r, nil
}

// Run выполняет оба этапа; ошибка любого этапа прерывает обработку.
func (p *Pipeline) Run(ctx context.Context, in AudioInput) (Result, error) {
	t, err := p.Transcribe(ctx, in)
	if err != nil {
		p.log.Warn().Err(err).Msg("enrichment: распознавание не удалось")
		return Result{}, err
	}
	r, err := p.Refine(ctx, t)
	if err != nil {
		p.log.Warn().Err(err).Msg("enrichment: правка не удалась")
		return Result{}, err
	}
	return Result{TranscribedText: t.Text, RefinedText: r.Text}, nil
}

func decodeAudio(in AudioInput) (domain.AudioClip, error) {
	raw := strings.TrimSpace(in.Audio)
	if i := strings.Index(raw, ";base64,"); strings.HasPrefix(raw, "data:") && i > 0 {
		if in.MIMEType == "" {
			in.MIMEType = strings.TrimPrefix(raw[:i], "data:")
		}
		raw = raw[i+len(";base64,"):]
	}
	if raw == "" {
		return domain.AudioClip{}, fmt.Errorf("%w: нет аудио", domain.ErrValidation)
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return domain.AudioClip{}, errors.Join(domain.ErrValidation, fmt.Errorf("base64: %w", err))
	}
	return domain.AudioClip{Data: data, MIMEType: strings.TrimSpace(in.MIMEType)}, nil
}
