package nodes

// Responder graph nodes
const (
	NodeQueryAssembler = "QueryAssembler"
	NodeToolCallModel  = "ToolCallModel"
	NodeToolExecutor   = "ToolExecutor"
	NodeAnswerModel    = "AnswerModel"
)

// Pipeline graph nodes
const (
	NodeDetectLanguage   = "DetectLanguage"
	NodeTranslateInbound = "TranslateInbound"
	NodeClassify         = "Classify"
	NodeEvaluate         = "Evaluate"
	NodeRefuse           = "Refuse"
	NodeTranslateBack    = "TranslateBack"
)
