package types_test

import (
	"testing"

	"github.com/himeno-lab/kotori/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func TestParseWorkflow(t *testing.T) {
	cases := map[string]types.Workflow{
		"conversation": types.WorkflowConversation,
		"image":        types.WorkflowImage,
		"audio":        types.WorkflowAudio,
		"":             types.WorkflowConversation,
		"video":        types.WorkflowConversation,
		"IMAGE":        types.WorkflowConversation,
	}

	for label, want := range cases {
		t.Run("label "+label, func(t *testing.T) {
			gt.Value(t, types.ParseWorkflow(label)).Equal(want)
		})
	}
}

func TestWorkflowIsValid(t *testing.T) {
	gt.Bool(t, types.WorkflowConversation.IsValid()).True()
	gt.Bool(t, types.WorkflowImage.IsValid()).True()
	gt.Bool(t, types.WorkflowAudio.IsValid()).True()
	gt.Bool(t, types.Workflow("video").IsValid()).False()
}

func TestThreadIDValidate(t *testing.T) {
	gt.NoError(t, types.ThreadID("t-1").Validate())
	gt.Error(t, types.ThreadID("").Validate())
}
