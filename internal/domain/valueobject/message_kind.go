package valueobject

// MessageKind is the closed set of kinds carried through the message queue.
type MessageKind string

const (
	KindUserInput     MessageKind = "UserInput"
	KindCancel        MessageKind = "Cancel"
	KindConfigReload  MessageKind = "ConfigReload"
	KindSessionReset  MessageKind = "SessionReset"
	KindProgress      MessageKind = "Progress"
	KindPartialResult MessageKind = "PartialResult"
	KindFinalResult   MessageKind = "FinalResult"
	KindError         MessageKind = "Error"
	KindStatusRequest MessageKind = "StatusRequest"
	KindStatusResponse MessageKind = "StatusResponse"
)

// IsValid reports whether k belongs to the closed message-kind set.
func (k MessageKind) IsValid() bool {
	switch k {
	case KindUserInput, KindCancel, KindConfigReload, KindSessionReset,
		KindProgress, KindPartialResult, KindFinalResult, KindError,
		KindStatusRequest, KindStatusResponse:
		return true
	}
	return false
}

// RequestKind is the three-way classification outcome.
type RequestKind string

const (
	RequestCommand  RequestKind = "command"
	RequestPrompt   RequestKind = "prompt"
	RequestWorkflow RequestKind = "workflow"
)

// ClassifierMethod names which classification method produced a result.
type ClassifierMethod string

const (
	MethodRuleBased ClassifierMethod = "rule-based"
	MethodLLMDirect ClassifierMethod = "llm-direct"
	MethodHybrid    ClassifierMethod = "hybrid"
)

// NodeKind is the closed set of workflow node kinds.
type NodeKind string

const (
	NodeInput      NodeKind = "input"
	NodeProcessing NodeKind = "processing"
	NodeTool       NodeKind = "tool"
	NodeReasoning  NodeKind = "reasoning"
	NodeOutput     NodeKind = "output"
	NodeDecision   NodeKind = "decision"
	NodeValidation NodeKind = "validation"
)

// IsValid reports whether k belongs to the closed node-kind set.
func (k NodeKind) IsValid() bool {
	switch k {
	case NodeInput, NodeProcessing, NodeTool, NodeReasoning, NodeOutput, NodeDecision, NodeValidation:
		return true
	}
	return false
}
