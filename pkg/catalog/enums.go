package catalog

// EntityStatus is the lifecycle state shared by most catalog entities
type EntityStatus string

const (
	StatusActive      EntityStatus = "active"
	StatusPlanned     EntityStatus = "planned"
	StatusMaintenance EntityStatus = "maintenance"
	StatusDeprecated  EntityStatus = "deprecated"
)

type ServiceType string

const (
	ServiceTypeAPI            ServiceType = "api"
	ServiceTypeWebApplication ServiceType = "web_application"
	ServiceTypeDatabase       ServiceType = "database"
	ServiceTypeMessageQueue   ServiceType = "message_queue"
	ServiceTypeCache          ServiceType = "cache"
	ServiceTypeInfrastructure ServiceType = "infrastructure"
)

type OperationalStatus string

const (
	Operational OperationalStatus = "operational"
	Degraded    OperationalStatus = "degraded"
	Outage      OperationalStatus = "outage"
)

type ComponentType string

const (
	ComponentLibrary      ComponentType = "library"
	ComponentMicroservice ComponentType = "microservice"
	ComponentSDK          ComponentType = "sdk"
	ComponentAgent        ComponentType = "agent"
	ComponentUI           ComponentType = "ui_component"
)

type ResourceType string

const (
	ResourceEC2               ResourceType = "ec2"
	ResourceVirtualMachine    ResourceType = "virtual_machine"
	ResourceLogicApp          ResourceType = "logic_app"
	ResourceStorageAccount    ResourceType = "storage_account"
	ResourceContainerInstance ResourceType = "container_instance"
	ResourceKubernetes        ResourceType = "kubernetes"
	ResourceFunctionApp       ResourceType = "function_app"
	ResourceLoadBalancer      ResourceType = "load_balancer"
	ResourceAPIGateway        ResourceType = "api_gateway"
	ResourceCDN               ResourceType = "cdn"
)

type RepositoryProvider string

const (
	ProviderGitHub      RepositoryProvider = "github"
	ProviderGitLab      RepositoryProvider = "gitlab"
	ProviderAzureDevOps RepositoryProvider = "azure_devops"
	ProviderBitbucket   RepositoryProvider = "bitbucket"
)

type IncidentSeverity string

const (
	SeverityCritical IncidentSeverity = "critical"
	SeverityMajor    IncidentSeverity = "major"
	SeverityMinor    IncidentSeverity = "minor"
)

type IncidentStatus string

const (
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentIdentified    IncidentStatus = "identified"
	IncidentMonitoring    IncidentStatus = "monitoring"
	IncidentResolved      IncidentStatus = "resolved"
)
