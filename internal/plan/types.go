package plan

// SpecVersionDefault is the current spec revision. Unrecognized tags are
// normalized to this value rather than rejected.
const SpecVersionDefault = "1.1"

// SelfModule is the reserved specifier for a component node that renders the
// plan's own embedded source module. It never resolves to an external URL.
const SelfModule = "@plan/source"

// Reserved metadata keys.
const (
	MetaSourcePrompt = "sourcePrompt"
	MetaSourceModel  = "sourceModel"
	MetaTags         = "tags"
)

// Plan is the unit of work: a declarative UI tree, an optional state machine,
// and optionally an embedded executable source module.
type Plan struct {
	ID             string                      `json:"id"`
	Version        int                         `json:"version"`
	SpecVersion    string                      `json:"specVersion,omitempty"`
	Root           Node                        `json:"root"`
	Capabilities   Capabilities                `json:"capabilities"`
	State          *StateSpec                  `json:"state,omitempty"`
	Imports        []string                    `json:"imports,omitempty"`
	ModuleManifest map[string]ModuleDescriptor `json:"moduleManifest,omitempty"`
	Source         *SourceModule               `json:"source,omitempty"`
	Metadata       map[string]interface{}      `json:"metadata,omitempty"`
}

// Capabilities lists the permissions a plan requests. Anything not declared
// here is denied at policy-check time.
type Capabilities struct {
	DOMWrite         bool     `json:"domWrite,omitempty"`
	NetworkHosts     []string `json:"networkHosts,omitempty"`
	AllowedModules   []string `json:"allowedModules,omitempty"`
	Timers           bool     `json:"timers,omitempty"`
	StorageScopes    []string `json:"storageScopes,omitempty"`
	ExecutionProfile string   `json:"executionProfile,omitempty"` // "standard" or "isolated"

	// Numeric ceilings. Nil means "use engine defaults".
	MaxImports              *int `json:"maxImports,omitempty"`
	MaxComponentInvocations *int `json:"maxComponentInvocations,omitempty"`
	MaxExecutionMs          *int `json:"maxExecutionMs,omitempty"`
}

// StateSpec holds the initial snapshot plus event transitions.
type StateSpec struct {
	Initial     map[string]interface{} `json:"initial,omitempty"`
	Transitions map[string][]Action    `json:"transitions,omitempty"`
}

// SourceModule is an embedded executable module carried inline in the plan.
type SourceModule struct {
	Code    string `json:"code"`
	Lang    string `json:"lang,omitempty"`    // "js", "jsx", "ts", "tsx"
	Export  string `json:"export,omitempty"`  // export name to invoke, default export if empty
	Runtime string `json:"runtime,omitempty"` // execution-runtime hint
}

// ModuleDescriptor is a pinned, integrity-checked module reference. Created
// by the resolver (or supplied inline), never mutated after creation.
type ModuleDescriptor struct {
	URL       string `json:"url"`
	Integrity string `json:"integrity,omitempty"` // "sha384-<base64>"
	Version   string `json:"version,omitempty"`
	Signer    string `json:"signer,omitempty"`
}

// Event is an external occurrence dispatched against a plan's transitions.
type Event struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// NormalizeSpecVersion maps a specVersion tag to a supported revision,
// falling back to the current default for unrecognized values.
func NormalizeSpecVersion(tag string) string {
	switch tag {
	case "1.0", "1.1":
		return tag
	default:
		return SpecVersionDefault
	}
}

// DeadlineMs returns the plan's requested execution ceiling, or 0 when unset.
func (p *Plan) DeadlineMs() int {
	if p.Capabilities.MaxExecutionMs != nil {
		return *p.Capabilities.MaxExecutionMs
	}
	return 0
}
