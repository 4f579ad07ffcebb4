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

package offload

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIs(t *testing.T) {
	cause := errors.New("transport reset")
	err := errf(IOFailure, cause, "upload part %d", 3)

	if !Is(err, IOFailure) {
		t.Fatalf("Is(err, IOFailure) = false, want true")
	}
	if Is(err, CorruptIndex) {
		t.Fatalf("Is(err, CorruptIndex) = true, want false")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true (Unwrap should expose cause)")
	}

	wrapped := fmt.Errorf("context: %w", err)
	if !Is(wrapped, IOFailure) {
		t.Fatalf("Is should see through fmt.Errorf wrapping via errors.As")
	}
}

func TestErrorIsFalseForPlainError(t *testing.T) {
	if Is(errors.New("plain"), IOFailure) {
		t.Fatal("Is on a plain error should be false")
	}
	if Is(nil, IOFailure) {
		t.Fatal("Is(nil, ...) should be false")
	}
}
