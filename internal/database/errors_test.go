package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		class     ErrorClass
		retryable bool
	}{
		{"nil", nil, ErrorClassPermanent, false},
		{"serialization", &pq.Error{Code: "40001"}, ErrorClassSerialization, true},
		{"deadlock wrapped", fmt.Errorf("put entry: %w", &pq.Error{Code: "40P01"}), ErrorClassDeadlock, true},
		{"lock not available", &pq.Error{Code: "55P03"}, ErrorClassTransient, true},
		{"connection failure", &pq.Error{Code: "08006"}, ErrorClassTransient, true},
		{"unique violation", &pq.Error{Code: "23505"}, ErrorClassPermanent, false},
		{"no rows", sql.ErrNoRows, ErrorClassPermanent, false},
		{"conn done", sql.ErrConnDone, ErrorClassTransient, true},
		{"other", errors.New("boom"), ErrorClassPermanent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, ClassifyError(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}
