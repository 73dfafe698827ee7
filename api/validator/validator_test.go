package validator

import (
	"testing"
)

type signup struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Username string `validate:"required,username"`
	Password string `validate:"required,password"`
}

func TestValidator_ValidateStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		input   interface{}
		wantErr bool
		fields  []string
	}{
		{
			name: "Valid struct",
			input: signup{
				Name:     "Jane Doe",
				Email:    "jane@example.com",
				Username: "jane.doe_1",
				Password: "hunter2",
			},
			wantErr: false,
		},
		{
			name:    "Missing required fields",
			input:   signup{Username: "jane", Password: "abc123"},
			wantErr: true,
			fields:  []string{"Name", "Email"},
		},
		{
			name: "Invalid email",
			input: signup{
				Name:     "Jane Doe",
				Email:    "not-an-email",
				Username: "jane",
				Password: "abc123",
			},
			wantErr: true,
			fields:  []string{"Email"},
		},
		{
			name: "Username with special characters",
			input: signup{
				Name:     "Jane Doe",
				Email:    "jane@example.com",
				Username: "jane!",
				Password: "abc123",
			},
			wantErr: true,
			fields:  []string{"Username"},
		},
		{
			name: "Username too short",
			input: signup{
				Name:     "Jane Doe",
				Email:    "jane@example.com",
				Username: "j",
				Password: "abc123",
			},
			wantErr: true,
			fields:  []string{"Username"},
		},
		{
			name: "Password without number",
			input: signup{
				Name:     "Jane Doe",
				Email:    "jane@example.com",
				Username: "jane",
				Password: "password",
			},
			wantErr: true,
			fields:  []string{"Password"},
		},
		{
			name: "Password without letter",
			input: signup{
				Name:     "Jane Doe",
				Email:    "jane@example.com",
				Username: "jane",
				Password: "123456",
			},
			wantErr: true,
			fields:  []string{"Password"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := v.ValidateStruct(tt.input)

			if tt.wantErr && len(errors) == 0 {
				t.Error("ValidateStruct() expected errors but got none")
				return
			}

			if !tt.wantErr && len(errors) > 0 {
				t.Errorf("ValidateStruct() got unexpected errors: %v", errors)
				return
			}

			if tt.wantErr {
				foundFields := make(map[string]bool)
				for _, err := range errors {
					foundFields[err.Field] = true
				}
				for _, expectedField := range tt.fields {
					if !foundFields[expectedField] {
						t.Errorf("Expected validation error for field %s, but got none", expectedField)
					}
				}
				if len(foundFields) != len(tt.fields) {
					t.Errorf("Got errors for %v, want only %v", errors, tt.fields)
				}
			}
		})
	}
}

func TestValidator_FriendlyMessages(t *testing.T) {
	v := New()

	errs := v.Validate("a b", "username")
	if len(errs) != 1 {
		t.Fatalf("Got %d errors, want 1", len(errs))
	}
	if errs[0].Message != messages["username"] {
		t.Errorf("Got message %q, want %q", errs[0].Message, messages["username"])
	}
}

func TestValidator_Validate(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		value   interface{}
		tag     string
		wantErr bool
	}{
		{
			name:    "Valid email",
			value:   "test@example.com",
			tag:     "email",
			wantErr: false,
		},
		{
			name:    "Invalid email",
			value:   "not-an-email",
			tag:     "email",
			wantErr: true,
		},
		{
			name:    "Required field present",
			value:   "value",
			tag:     "required",
			wantErr: false,
		},
		{
			name:    "Required field empty",
			value:   "",
			tag:     "required",
			wantErr: true,
		},
		{
			name:    "Username with period",
			value:   "first.last",
			tag:     "username",
			wantErr: false,
		},
		{
			name:    "Username with space",
			value:   "first last",
			tag:     "username",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := v.Validate(tt.value, tt.tag)

			if tt.wantErr && len(errors) == 0 {
				t.Error("Validate() expected errors but got none")
			}

			if !tt.wantErr && len(errors) > 0 {
				t.Errorf("Validate() got unexpected errors: %v", errors)
			}
		})
	}
}

func TestNew(t *testing.T) {
	v := New()
	if v == nil || v.cli == nil {
		t.Error("New() returned invalid validator")
	}
}
