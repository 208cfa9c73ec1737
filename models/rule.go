package models

// ResourceType is the kind of request a rule condition can match.
type ResourceType string

const (
	ResourceMainFrame      ResourceType = "main_frame"
	ResourceSubFrame       ResourceType = "sub_frame"
	ResourceXMLHTTPRequest ResourceType = "xmlhttprequest"
	ResourceOther          ResourceType = "other"
)

// RuleActionType values understood by the rule engine.
const (
	ActionModifyHeaders = "modifyHeaders"
)

// HeaderOperation values understood by the rule engine.
const (
	HeaderOperationSet    = "set"
	HeaderOperationRemove = "remove"
	HeaderOperationAppend = "append"
)

// AcceptLanguageHeader is the header rewritten by synchronized rules.
const AcceptLanguageHeader = "accept-language"

// DefaultRulePriority is the priority given to every synchronized rule.
const DefaultRulePriority = 1

// LanguageResourceTypes are the request kinds an Accept-Language rule applies to.
var LanguageResourceTypes = []ResourceType{ResourceMainFrame, ResourceSubFrame, ResourceXMLHTTPRequest}

// Rule is an installed header-rewrite directive.
type Rule struct {
	ID        int           `json:"id" yaml:"id"`
	Priority  int           `json:"priority" yaml:"priority"`
	Action    RuleAction    `json:"action" yaml:"action"`
	Condition RuleCondition `json:"condition" yaml:"condition"`
}

// RuleAction says what happens to a matching request.
type RuleAction struct {
	Type           string               `json:"type" yaml:"type"`
	RequestHeaders []HeaderModification `json:"requestHeaders,omitempty" yaml:"requestHeaders,omitempty"`
}

// HeaderModification is one header edit applied to a matching request.
type HeaderModification struct {
	Header    string `json:"header" yaml:"header"`
	Operation string `json:"operation" yaml:"operation"`
	Value     string `json:"value,omitempty" yaml:"value,omitempty"`
}

// RuleCondition selects the requests a rule applies to.
type RuleCondition struct {
	RequestDomains []string       `json:"requestDomains" yaml:"requestDomains"`
	ResourceTypes  []ResourceType `json:"resourceTypes" yaml:"resourceTypes"`
}

// NewLanguageRule builds the rule that sets Accept-Language to headerValue for domain.
func NewLanguageRule(id int, domain, headerValue string) Rule {
	resourceTypes := make([]ResourceType, len(LanguageResourceTypes))
	copy(resourceTypes, LanguageResourceTypes)
	return Rule{
		ID:       id,
		Priority: DefaultRulePriority,
		Action: RuleAction{
			Type: ActionModifyHeaders,
			RequestHeaders: []HeaderModification{{
				Header:    AcceptLanguageHeader,
				Operation: HeaderOperationSet,
				Value:     headerValue,
			}},
		},
		Condition: RuleCondition{
			RequestDomains: []string{domain},
			ResourceTypes:  resourceTypes,
		},
	}
}
