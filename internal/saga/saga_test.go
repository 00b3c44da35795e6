package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedStep struct {
	name        string
	failExecute error
	log         *[]string
}

func (s *recordedStep) Name() string { return s.name }

func (s *recordedStep) Execute(context.Context) error {
	*s.log = append(*s.log, "exec:"+s.name)
	return s.failExecute
}

func (s *recordedStep) Compensate(context.Context) error {
	*s.log = append(*s.log, "comp:"+s.name)
	return nil
}

func TestRun_AllStepsSucceed(t *testing.T) {
	var log []string
	o := NewOrchestrator([]Step{
		&recordedStep{name: "a", log: &log},
		&recordedStep{name: "b", log: &log},
	})

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, []string{"exec:a", "exec:b"}, log)
}

func TestRun_FailureRollsBackInReverse(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	o := NewOrchestrator([]Step{
		&recordedStep{name: "a", log: &log},
		&recordedStep{name: "b", log: &log},
		&recordedStep{name: "c", log: &log, failExecute: boom},
	})

	err := o.Run(context.Background())
	require.ErrorIs(t, err, boom)

	// c never completed so it is not compensated; a and b roll back LIFO.
	assert.Equal(t, []string{"exec:a", "exec:b", "exec:c", "comp:b", "comp:a"}, log)
}

func TestRun_FirstStepFailureCompensatesNothing(t *testing.T) {
	var log []string
	o := NewOrchestrator([]Step{
		&recordedStep{name: "a", log: &log, failExecute: errors.New("boom")},
		&recordedStep{name: "b", log: &log},
	})

	require.Error(t, o.Run(context.Background()))
	assert.Equal(t, []string{"exec:a"}, log)
}
