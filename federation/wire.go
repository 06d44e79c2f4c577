package federation

// Wire payloads for the federation REST API. Envelope fields are camelCase;
// metric objects nested inside them use snake_case keys.

// Registration announces a neuron to the federation.
type Registration struct {
	NeuronID             string             `json:"neuronId"`
	Name                 string             `json:"name"`
	Type                 string             `json:"type"`
	Language             string             `json:"language"`
	Version              string             `json:"version"`
	BaseURL              *string            `json:"baseUrl"`
	HealthcheckEndpoint  string             `json:"healthcheckEndpoint"`
	APIEndpoints         []string           `json:"apiEndpoints"`
	Authentication       Authentication     `json:"authentication"`
	Capabilities         []string           `json:"capabilities"`
	Dependencies         []string           `json:"dependencies"`
	ResourceRequirements map[string]string  `json:"resourceRequirements"`
	DeploymentInfo       map[string]string  `json:"deploymentInfo"`
	AlertThresholds      map[string]float64 `json:"alertThresholds"`
	AutoRestartEnabled   bool               `json:"autoRestartEnabled"`
	MaxRestartAttempts   int                `json:"maxRestartAttempts"`
	Metadata             map[string]string  `json:"metadata"`
}

// Authentication describes how the federation authenticates this neuron.
type Authentication struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// Heartbeat is the periodic liveness report.
type Heartbeat struct {
	Status             string             `json:"status"`
	HealthScore        int                `json:"healthScore"`
	Uptime             int64              `json:"uptime"`
	ProcessID          string             `json:"processId"`
	HostInfo           HostInfo           `json:"hostInfo"`
	SystemMetrics      *SystemMetrics     `json:"systemMetrics"`
	ApplicationMetrics *ProcessMetrics    `json:"applicationMetrics"`
	DependencyStatus   map[string]string  `json:"dependencyStatus"`
	PerformanceMetrics PerformanceMetrics `json:"performanceMetrics"`
	ConfigVersion      string             `json:"configVersion"`
	BuildVersion       string             `json:"buildVersion"`
}

// HostInfo identifies the machine the neuron runs on.
type HostInfo struct {
	Hostname    string `json:"hostname"`
	Platform    string `json:"platform"`
	IPAddress   string `json:"ip_address"`
	ContainerID string `json:"container_id,omitempty"`
}

// PerformanceMetrics summarizes request handling for the heartbeat.
type PerformanceMetrics struct {
	RequestsPerSecond   float64 `json:"requests_per_second"`
	AverageResponseTime float64 `json:"average_response_time"`
	MemoryUsageMB       float64 `json:"memory_usage_mb"`
}

// Command is a control instruction issued by the federation.
type Command struct {
	ID   string                 `json:"commandId"`
	Type CommandType            `json:"commandType"`
	Data map[string]interface{} `json:"commandData"`
}

// CommandResult reports the outcome of an executed command.
type CommandResult struct {
	Success      bool        `json:"success"`
	Response     interface{} `json:"response"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
}

// AnalyticsEvent is a single noteworthy occurrence buffered between reports.
type AnalyticsEvent struct {
	Type      string                 `json:"type"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// AnalyticsReport is the periodic usage summary.
type AnalyticsReport struct {
	RequestCount        int64              `json:"requestCount"`
	SuccessfulRequests  int64              `json:"successfulRequests"`
	FailedRequests      int64              `json:"failedRequests"`
	AverageResponseTime float64            `json:"averageResponseTime"`
	TotalDataProcessed  int64              `json:"totalDataProcessed"`
	Uptime              int64              `json:"uptime"`
	CustomMetrics       map[string]float64 `json:"customMetrics"`
	Events              []AnalyticsEvent   `json:"events"`
}
