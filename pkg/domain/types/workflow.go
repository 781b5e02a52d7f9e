package types

// Workflow is the response modality selected for a turn
type Workflow string

const (
	WorkflowConversation Workflow = "conversation"
	WorkflowImage        Workflow = "image"
	WorkflowAudio        Workflow = "audio"
)

// ParseWorkflow maps a classifier label to a Workflow. Any label other
// than "image" or "audio" falls back to the conversational path, so an
// unrecognized classification can never fail a turn.
func ParseWorkflow(label string) Workflow {
	switch Workflow(label) {
	case WorkflowImage:
		return WorkflowImage
	case WorkflowAudio:
		return WorkflowAudio
	default:
		return WorkflowConversation
	}
}

// IsValid checks if the Workflow is one of the known modalities
func (w Workflow) IsValid() bool {
	switch w {
	case WorkflowConversation, WorkflowImage, WorkflowAudio:
		return true
	}
	return false
}

func (w Workflow) String() string {
	return string(w)
}
