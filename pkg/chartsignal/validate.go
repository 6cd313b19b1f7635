package chartsignal

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Client-facing validation messages.
const (
	MsgImagesRequired = "Images array is required and cannot be empty"
	MsgInvalidBody    = "Invalid request body"
)

var mediaTypes = map[string]string{
	"image/png":  "image/png",
	"image/jpeg": "image/jpeg",
	"image/jpg":  "image/jpeg",
	"image/webp": "image/webp",
	"image/gif":  "image/gif",
}

// requestForm carries the checks in the order they are reported.
type requestForm struct {
	Images   []string `validate:"required,min=1,max=8,dive,chartimage,chartimagesize"`
	Strategy string   `default:"scalping" validate:"oneof=scalping day swing position momentum counter"`
}

// Validator checks analysis requests before any external call is made.
type Validator struct {
	validate *validator.Validate
}

// NewValidator returns a Validator with the chart image rules registered.
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("chartimage", func(fl validator.FieldLevel) bool {
		_, err := decodeImage(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("chartimagesize", func(fl validator.FieldLevel) bool {
		_, payload, ok := splitDataURI(fl.Field().String())
		return ok && decodedSize(payload) <= MaxImageBytes
	})
	return &Validator{validate: v}
}

// Validate returns the decoded request or a validation *Error carrying the
// message for the first violated constraint.
func (v *Validator) Validate(req AnalysisRequest) (ValidatedRequest, error) {
	form := requestForm{
		Images:   req.Images,
		Strategy: strings.ToLower(strings.TrimSpace(req.Strategy)),
	}
	if form.Images == nil && strings.TrimSpace(req.Image) != "" {
		form.Images = []string{req.Image}
	}

	if err := defaults.Set(&form); err != nil {
		return ValidatedRequest{}, WrapError(ErrCodeInternal, "apply request defaults", err)
	}

	if err := v.validate.Struct(&form); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return ValidatedRequest{}, NewError(ErrCodeValidation, validationMessage(validationErrors[0]))
		}
		return ValidatedRequest{}, WrapError(ErrCodeInternal, "validate request", err)
	}

	strategy, _ := ParseStrategy(form.Strategy)
	out := ValidatedRequest{
		Images:   make([]ImagePayload, 0, len(form.Images)),
		Strategy: strategy,
	}
	for i, raw := range form.Images {
		img, err := decodeImage(raw)
		if err != nil {
			return ValidatedRequest{}, NewError(ErrCodeValidation, invalidImageMessage(i+1))
		}
		out.Images = append(out.Images, img)
	}
	return out, nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "min":
		if fe.StructField() == "Images" {
			return MsgImagesRequired
		}
	case "max":
		return fmt.Sprintf("Maximum %s images allowed", fe.Param())
	case "chartimage":
		return invalidImageMessage(elementPosition(fe.Field()))
	case "chartimagesize":
		return fmt.Sprintf("Image size exceeds %dMB limit (image %d)", MaxImageBytes/(1024*1024), elementPosition(fe.Field()))
	case "oneof":
		return fmt.Sprintf("Invalid strategy. Must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
}

func invalidImageMessage(position int) string {
	return fmt.Sprintf("Invalid image format at position %d. Expected a base64-encoded image data URI", position)
}

// elementPosition turns a dive field name such as "Images[2]" into a 1-based position.
func elementPosition(field string) int {
	start := strings.LastIndexByte(field, '[')
	end := strings.LastIndexByte(field, ']')
	if start < 0 || end <= start+1 {
		return 0
	}
	idx, err := strconv.Atoi(field[start+1 : end])
	if err != nil {
		return 0
	}
	return idx + 1
}

// splitDataURI returns the normalized media type and the base64 payload of a
// "data:<type>;base64,<payload>" URI.
func splitDataURI(uri string) (string, string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "data:")
	if !ok {
		return "", "", false
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok || payload == "" {
		return "", "", false
	}
	params := strings.Split(header, ";")
	mediaType, known := mediaTypes[strings.ToLower(strings.TrimSpace(params[0]))]
	if !known {
		return "", "", false
	}
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			return mediaType, payload, true
		}
	}
	return "", "", false
}

func decodeImage(uri string) (ImagePayload, error) {
	mediaType, payload, ok := splitDataURI(uri)
	if !ok {
		return ImagePayload{}, errors.New("not a base64 image data URI")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return ImagePayload{}, fmt.Errorf("decode image payload: %w", err)
	}
	if len(data) == 0 {
		return ImagePayload{}, errors.New("empty image payload")
	}
	return ImagePayload{MediaType: mediaType, Data: data}, nil
}

// decodedSize is the byte length a base64 payload decodes to. Line breaks
// are skipped the same way the decoder skips them; "=" only appears as padding.
func decodedSize(payload string) int {
	n := 0
	for i := 0; i < len(payload); i++ {
		switch payload[i] {
		case '\r', '\n', '=':
		default:
			n++
		}
	}
	return n * 3 / 4
}
