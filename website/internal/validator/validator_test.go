package validator

import "testing"

func TestValidator(t *testing.T) {
	var v Validator
	v.CheckField(NotBlank("  "), "email", "This field cannot be blank")
	v.CheckField(Matches("not-an-email", EmailRX), "email", "second message is ignored")
	v.CheckField(MinChars("pa55word", 8), "password", "too short")

	if v.Valid() {
		t.Fatal("validator should be invalid")
	}
	if got := v.FieldErrors["email"]; got != "This field cannot be blank" {
		t.Errorf("email error = %q", got)
	}
	if _, ok := v.FieldErrors["password"]; ok {
		t.Error("password should pass MinChars")
	}

	var ok Validator
	ok.CheckField(Matches("grower@example.com", EmailRX), "email", "bad")
	if !ok.Valid() {
		t.Errorf("valid email rejected: %v", ok.FieldErrors)
	}
	ok.AddNonFieldError("Email or password is incorrect")
	if ok.Valid() {
		t.Error("non-field error ignored")
	}
}
