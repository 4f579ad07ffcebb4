/*
Copyright 2026 The Ledger Offload Engine Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package jsonconfig

import "testing"

func TestRequiredAndOptionalAccessors(t *testing.T) {
	jc, err := Parse([]byte(`{"driver":"s3","readBufferSize":4096,"verbose":true}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := jc.RequiredString("driver"); got != "s3" {
		t.Fatalf("RequiredString(driver) = %q, want s3", got)
	}
	if got := jc.OptionalString("endpoint", "default-endpoint"); got != "default-endpoint" {
		t.Fatalf("OptionalString(endpoint) = %q, want the default", got)
	}
	if got := jc.RequiredInt64("readBufferSize"); got != 4096 {
		t.Fatalf("RequiredInt64(readBufferSize) = %d, want 4096", got)
	}
	if got := jc.RequiredBool("verbose"); !got {
		t.Fatal("RequiredBool(verbose) = false, want true")
	}

	if err := jc.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateReportsMissingRequiredKey(t *testing.T) {
	jc, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	jc.RequiredString("driver")
	if err := jc.Validate(); err == nil {
		t.Fatal("Validate() = nil, want an error for the missing required key")
	}
}

func TestValidateReportsUnknownKey(t *testing.T) {
	jc, err := Parse([]byte(`{"driver":"s3","bogus":true}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	jc.RequiredString("driver")
	if err := jc.Validate(); err == nil {
		t.Fatal("Validate() = nil, want an error for the unknown key")
	}
}

func TestValidateReportsWrongType(t *testing.T) {
	jc, err := Parse([]byte(`{"readBufferSize":"not-a-number"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	jc.RequiredInt64("readBufferSize")
	if err := jc.Validate(); err == nil {
		t.Fatal("Validate() = nil, want a type error")
	}
}
