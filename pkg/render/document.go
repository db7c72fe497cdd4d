package render

// Typed tree for the Jenkins Configuration-as-Code document. The document is
// built as structs and serialized with the YAML encoder; no string
// templating, so credential values and URLs can never break the output
// format.

// Document is a complete controller configuration. It fully replaces any
// previous configuration each run.
type Document struct {
	Jenkins     JenkinsSection     `yaml:"jenkins" json:"jenkins"`
	Credentials CredentialsSection `yaml:"credentials" json:"credentials"`
}

// JenkinsSection configures the controller itself: no local executors, all
// builds dispatched to the Kubernetes cloud.
type JenkinsSection struct {
	NumExecutors int     `yaml:"numExecutors" json:"numExecutors"`
	Clouds       []Cloud `yaml:"clouds" json:"clouds"`
}

// Cloud wraps a single cloud entry. Only the kubernetes cloud is emitted.
type Cloud struct {
	Kubernetes KubernetesCloud `yaml:"kubernetes" json:"kubernetes"`
}

// KubernetesCloud mirrors the kubernetes plugin's cloud configuration.
type KubernetesCloud struct {
	Name           string         `yaml:"name" json:"name"`
	ServerURL      string         `yaml:"serverUrl,omitempty" json:"serverUrl,omitempty"`
	Namespace      string         `yaml:"namespace" json:"namespace"`
	JenkinsURL     string         `yaml:"jenkinsUrl" json:"jenkinsUrl"`
	JenkinsTunnel  string         `yaml:"jenkinsTunnel" json:"jenkinsTunnel"`
	CredentialsID  string         `yaml:"credentialsId" json:"credentialsId"`
	SkipTLSVerify  bool           `yaml:"skipTlsVerify" json:"skipTlsVerify"`
	ContainerCap   string         `yaml:"containerCapStr" json:"containerCapStr"`
	ConnectTimeout int            `yaml:"connectTimeout" json:"connectTimeout"`
	ReadTimeout    int            `yaml:"readTimeout" json:"readTimeout"`
	Templates      []AgentTemplate `yaml:"templates" json:"templates"`
}

// AgentTemplate is the pod template the controller instantiates per build.
type AgentTemplate struct {
	Name       string           `yaml:"name" json:"name"`
	Namespace  string           `yaml:"namespace" json:"namespace"`
	Label      string           `yaml:"label,omitempty" json:"label,omitempty"`
	Containers []AgentContainer `yaml:"containers" json:"containers"`
}

// AgentContainer is a container within an agent pod template.
type AgentContainer struct {
	Name                string `yaml:"name" json:"name"`
	Image               string `yaml:"image" json:"image"`
	WorkingDir          string `yaml:"workingDir,omitempty" json:"workingDir,omitempty"`
	AlwaysPullImage     bool   `yaml:"alwaysPullImage" json:"alwaysPullImage"`
	ResourceRequestCPU  string `yaml:"resourceRequestCpu,omitempty" json:"resourceRequestCpu,omitempty"`
	ResourceRequestMem  string `yaml:"resourceRequestMemory,omitempty" json:"resourceRequestMemory,omitempty"`
}

// CredentialsSection carries the system-scoped credential store entries.
type CredentialsSection struct {
	System SystemCredentials `yaml:"system" json:"system"`
}

// SystemCredentials is the global credential domain.
type SystemCredentials struct {
	DomainCredentials []DomainCredentials `yaml:"domainCredentials" json:"domainCredentials"`
}

// DomainCredentials groups credentials in one domain.
type DomainCredentials struct {
	Credentials []CredentialEntry `yaml:"credentials" json:"credentials"`
}

// CredentialEntry wraps a single credential definition.
type CredentialEntry struct {
	StringCredential StringCredential `yaml:"string" json:"string"`
}

// StringCredential is a secret-text credential resolved by id from the
// cloud configuration.
type StringCredential struct {
	Scope       string `yaml:"scope" json:"scope"`
	ID          string `yaml:"id" json:"id"`
	Secret      string `yaml:"secret" json:"secret"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}
