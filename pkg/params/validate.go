// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package params

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// setValidate is the validator instance for parameter sets.
// Initialized in init() with the struct-level consistency checks.
var setValidate *validator.Validate

func init() {
	setValidate = validator.New()
	setValidate.RegisterStructValidation(validateConsistency, Set{})
}

// validateConsistency checks the rules that span several fields: compiler
// and alignment must match the backend, and every option must be known and
// carry a value of the right kind.
func validateConsistency(sl validator.StructLevel) {
	s := sl.Current().Interface().(Set)

	if def, ok := backendDefaults[s.Backend]; ok {
		if s.Compiler != def.compiler {
			sl.ReportError(s.Compiler, "Compiler", "Compiler", "backend_compiler", def.compiler)
		}
		if s.Alignment != def.alignment {
			sl.ReportError(s.Alignment, "Alignment", "Alignment", "backend_alignment", fmt.Sprint(def.alignment))
		}
	}

	keys := make([]string, 0, len(s.Options))
	for k := range s.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := s.Options[k]
		kind, ok := knownOptions[k]
		if !ok {
			sl.ReportError(v, "Options["+k+"]", k, "known_option", "")
			continue
		}
		if !kind.accepts(v) {
			sl.ReportError(v, "Options["+k+"]", k, "option_kind", kind.String())
		}
	}
}

// Validate checks the set against its field rules.
//
// Description:
//
//	Checks backend and data type tags, backend consistency of compiler and
//	alignment, domain shape (three positive extents when present), block
//	size shape (one to three positive extents when present), and the option
//	table. Kernel-specific relationships (halo against domain, axis range)
//	are checked by the kernels themselves.
//
// Outputs:
//   - error: nil when valid, otherwise wraps ErrInvalidParameters and lists
//     every failing field.
func (s Set) Validate() error {
	err := setValidate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msg += fmt.Sprintf(" (got %v)", fe.Value())
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", ErrInvalidParameters, strings.Join(msgs, "; "))
}
