package audit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"circles/internal/audit"
)

func TestNewKafkaSinkValidation(t *testing.T) {
	_, err := audit.NewKafkaSink(nil, "circles.audit")
	require.Error(t, err)

	_, err = audit.NewKafkaSink([]string{"localhost:9092"}, "")
	require.Error(t, err)
}
