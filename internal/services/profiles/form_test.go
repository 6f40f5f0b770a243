package profiles

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/gateway/gatewaytest"
	"github.com/caffeinepub/connect-dating/internal/query"
	"github.com/caffeinepub/connect-dating/internal/services/remote"
)

func validValues() url.Values {
	return url.Values{
		"full_name":        {"  Dana Scott "},
		"age":              {"34"},
		"bio":              {" Loves hiking "},
		"interests":        {"hiking", " hiking ", "", "chess"},
		"native_languages": {"English"},
		"target_languages": {"Spanish", "Japanese"},
	}
}

func TestParseFormTrimsAndDedupes(t *testing.T) {
	form := ParseForm(validValues())

	if form.FullName != "Dana Scott" || form.Bio != "Loves hiking" || form.Age != 34 {
		t.Fatalf("unexpected scalar fields: %+v", form)
	}
	if strings.Join(form.Interests, ",") != "hiking,chess" {
		t.Fatalf("unexpected interests: %v", form.Interests)
	}
	if err := form.Validate(); err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}
}

func TestValidateReportsFields(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(url.Values)
		field string
	}{
		{name: "missing name", edit: func(v url.Values) { v.Set("full_name", " ") }, field: "full_name"},
		{name: "underage", edit: func(v url.Values) { v.Set("age", "17") }, field: "age"},
		{name: "too old", edit: func(v url.Values) { v.Set("age", "121") }, field: "age"},
		{name: "age not a number", edit: func(v url.Values) { v.Set("age", "old") }, field: "age"},
		{name: "missing bio", edit: func(v url.Values) { v.Del("bio") }, field: "bio"},
		{name: "long tag", edit: func(v url.Values) { v.Add("interests", strings.Repeat("x", 41)) }, field: FieldInterests},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			values := validValues()
			tc.edit(values)

			err := ParseForm(values).Validate()
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var fields FieldErrors
			if !errors.As(err, &fields) {
				t.Fatalf("expected FieldErrors, got %T", err)
			}
			if fields[tc.field] == "" {
				t.Fatalf("expected error on %s, got %v", tc.field, fields)
			}
		})
	}
}

func TestApplyActionEditsTags(t *testing.T) {
	values := validValues()
	values.Set("interest_input", "  climbing ")
	form := ParseForm(values)

	if !form.ApplyAction("add:" + FieldInterests) {
		t.Fatalf("add should be a tag action")
	}
	if strings.Join(form.Interests, ",") != "hiking,chess,climbing" || form.InterestInput != "" {
		t.Fatalf("unexpected interests after add: %v input=%q", form.Interests, form.InterestInput)
	}

	form.InterestInput = "chess"
	form.ApplyAction("add:" + FieldInterests)
	if len(form.Interests) != 3 || form.InterestInput != "chess" {
		t.Fatalf("duplicate tag must be ignored and kept in the input: %v", form.Interests)
	}

	if !form.ApplyAction("remove:" + FieldTargetLanguages + ":Spanish") {
		t.Fatalf("remove should be a tag action")
	}
	if strings.Join(form.TargetLanguages, ",") != "Japanese" {
		t.Fatalf("unexpected target languages: %v", form.TargetLanguages)
	}

	if form.ApplyAction("save") || form.ApplyAction("add:unknown") {
		t.Fatalf("non-tag actions must be reported as such")
	}
}

func TestMergeKeepsNonFormFields(t *testing.T) {
	other := model.SelfAuthenticating([]byte("other"))
	existing := model.UserProfile{
		FullName:      "Old",
		Age:           40,
		CurrentStatus: enums.StatusActive,
		Matches:       []model.Principal{other},
	}
	merged := ParseForm(validValues()).Merge(existing)

	if merged.FullName != "Dana Scott" || merged.Age != 34 {
		t.Fatalf("form fields should replace existing values: %+v", merged)
	}
	if merged.CurrentStatus != enums.StatusActive || !merged.HasMatch(other) {
		t.Fatalf("non-form fields must be preserved: %+v", merged)
	}
}

func TestCreateAndSave(t *testing.T) {
	fake := gatewaytest.NewFake()
	me := model.SelfAuthenticating([]byte("dana"))
	c := query.NewClient(context.Background(), fake.As(me), query.ClientOptions{})
	defer c.Close()

	remoteSvc := remote.NewService(remote.Dependencies{})
	svc := NewService(remoteSvc)
	ctx := context.Background()

	if err := svc.Save(ctx, c, ParseForm(validValues())); !errors.Is(err, ErrNoProfile) {
		t.Fatalf("save without a profile should fail with ErrNoProfile, got %v", err)
	}

	if err := svc.Create(ctx, c, ParseForm(validValues())); err != nil {
		t.Fatalf("create: %v", err)
	}
	created, ok := remoteSvc.CallerProfile(ctx, c).Profile()
	if !ok || created.CurrentStatus != enums.StatusOffline || len(created.Interests) != 0 {
		t.Fatalf("unexpected created profile: %+v", created)
	}

	values := validValues()
	values.Set("bio", "Updated bio")
	if err := svc.Save(ctx, c, ParseForm(values)); err != nil {
		t.Fatalf("save: %v", err)
	}
	saved, _ := remoteSvc.CallerProfile(ctx, c).Profile()
	if saved.Bio != "Updated bio" || strings.Join(saved.Interests, ",") != "hiking,chess" {
		t.Fatalf("unexpected saved profile: %+v", saved)
	}

	invalid := validValues()
	invalid.Set("age", "10")
	before := fake.Calls("saveCallerUserProfile")
	if err := svc.Save(ctx, c, ParseForm(invalid)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if fake.Calls("saveCallerUserProfile") != before {
		t.Fatalf("invalid form must not reach the backend")
	}
}
