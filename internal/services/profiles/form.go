package profiles

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/domain/rules"
)

var ErrValidation = errors.New("validation error")

// Tag fields of the profile forms.
const (
	FieldInterests       = "interests"
	FieldNativeLanguages = "native_languages"
	FieldTargetLanguages = "target_languages"
)

// Form is the submitted state of the profile setup or editor form. Tag lists travel
// as repeated fields; the *Input fields hold the text typed next to each list.
type Form struct {
	FullName        string   `validate:"required,max=80"`
	AgeText         string   `validate:"required"`
	Age             int      `validate:"gte=18,lte=120"`
	Bio             string   `validate:"required,max=1000"`
	Interests       []string `validate:"max=20,dive,max=40"`
	NativeLanguages []string `validate:"max=20,dive,max=40"`
	TargetLanguages []string `validate:"max=20,dive,max=40"`

	InterestInput       string
	NativeLanguageInput string
	TargetLanguageInput string
}

// FieldErrors maps form field names to user-facing messages.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	return "invalid profile form"
}

func (e FieldErrors) Unwrap() error {
	return ErrValidation
}

var formValidator = validator.New()

func ParseForm(values url.Values) Form {
	f := Form{
		FullName:            strings.TrimSpace(values.Get("full_name")),
		AgeText:             strings.TrimSpace(values.Get("age")),
		Bio:                 strings.TrimSpace(values.Get("bio")),
		Interests:           normalizeTags(values[FieldInterests]),
		NativeLanguages:     normalizeTags(values[FieldNativeLanguages]),
		TargetLanguages:     normalizeTags(values[FieldTargetLanguages]),
		InterestInput:       values.Get("interest_input"),
		NativeLanguageInput: values.Get("native_language_input"),
		TargetLanguageInput: values.Get("target_language_input"),
	}
	if n, err := strconv.Atoi(f.AgeText); err == nil {
		f.Age = n
	}
	return f
}

func FormFromProfile(p model.UserProfile) Form {
	return Form{
		FullName:        p.FullName,
		AgeText:         strconv.Itoa(p.Age),
		Age:             p.Age,
		Bio:             p.Bio,
		Interests:       append([]string{}, p.Interests...),
		NativeLanguages: append([]string{}, p.NativeLanguages...),
		TargetLanguages: append([]string{}, p.TargetLanguages...),
	}
}

// Validate checks the form. The returned error is a FieldErrors.
func (f Form) Validate() error {
	err := formValidator.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		field, msg := describe(fe)
		if _, exists := out[field]; !exists {
			out[field] = msg
		}
	}
	return out
}

func describe(fe validator.FieldError) (string, string) {
	name, _, _ := strings.Cut(fe.StructField(), "[")
	switch name {
	case "FullName":
		if fe.Tag() == "max" {
			return "full_name", "Full name is too long"
		}
		return "full_name", "Full name is required"
	case "AgeText", "Age":
		return "age", "Age must be between " + strconv.Itoa(rules.MinAge) + " and " + strconv.Itoa(rules.MaxAge)
	case "Bio":
		if fe.Tag() == "max" {
			return "bio", "Bio is too long"
		}
		return "bio", "Bio is required"
	case "Interests":
		return FieldInterests, "Too many interests or an interest is too long"
	case "NativeLanguages":
		return FieldNativeLanguages, "Too many languages or a language is too long"
	default:
		return FieldTargetLanguages, "Too many languages or a language is too long"
	}
}

// ShortProfile builds the creation payload. New profiles start offline.
func (f Form) ShortProfile() model.ShortProfile {
	return model.ShortProfile{
		FullName:        f.FullName,
		Age:             f.Age,
		Bio:             f.Bio,
		NativeLanguages: append([]string{}, f.NativeLanguages...),
		TargetLanguages: append([]string{}, f.TargetLanguages...),
		CurrentStatus:   enums.StatusOffline,
	}
}

// Merge replaces the editable fields of existing and keeps everything else.
func (f Form) Merge(existing model.UserProfile) model.UserProfile {
	out := existing.Clone()
	out.FullName = f.FullName
	out.Age = f.Age
	out.Bio = f.Bio
	out.Interests = append([]string{}, f.Interests...)
	out.NativeLanguages = append([]string{}, f.NativeLanguages...)
	out.TargetLanguages = append([]string{}, f.TargetLanguages...)
	return out
}

// AddTag appends the trimmed tag unless it is blank or already present.
func AddTag(list []string, raw string) ([]string, bool) {
	tag := strings.TrimSpace(raw)
	if tag == "" {
		return list, false
	}
	for _, existing := range list {
		if existing == tag {
			return list, false
		}
	}
	return append(list, tag), true
}

func RemoveTag(list []string, tag string) []string {
	out := make([]string, 0, len(list))
	for _, existing := range list {
		if existing != tag {
			out = append(out, existing)
		}
	}
	return out
}

func normalizeTags(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		out, _ = AddTag(out, item)
	}
	return out
}

// ApplyAction performs a tag edit named by the submit button ("add:<field>" or
// "remove:<field>:<tag>") and reports whether the action was a tag edit.
func (f *Form) ApplyAction(action string) bool {
	kind, rest, _ := strings.Cut(action, ":")
	switch kind {
	case "add":
		list, input := f.tagField(rest)
		if list == nil {
			return false
		}
		var added bool
		*list, added = AddTag(*list, *input)
		if added {
			*input = ""
		}
		return true
	case "remove":
		field, tag, ok := strings.Cut(rest, ":")
		if !ok {
			return false
		}
		list, _ := f.tagField(field)
		if list == nil {
			return false
		}
		*list = RemoveTag(*list, tag)
		return true
	default:
		return false
	}
}

func (f *Form) tagField(name string) (*[]string, *string) {
	switch name {
	case FieldInterests:
		return &f.Interests, &f.InterestInput
	case FieldNativeLanguages:
		return &f.NativeLanguages, &f.NativeLanguageInput
	case FieldTargetLanguages:
		return &f.TargetLanguages, &f.TargetLanguageInput
	default:
		return nil, nil
	}
}
