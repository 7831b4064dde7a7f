package domain

const (
	ACTOR_ID_MASTER    = "master"
	ACTOR_ID_BROKER    = "broker"
	ACTOR_ID_DIRECTORY = "directory"
	ACTOR_ID_HISTORY   = "history"
)

// Chart series kinds, matching the report-detail tabs.
const (
	ChartKindTemperature = "temp"
	ChartKindHumidity    = "humid"
	ChartKindLight       = "light"
)

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

type GetDevicesRequest struct {
	ActorRequestMixIn
}

type GetDevicesResponse struct {
	ActorResponseMixIn
	Devices  []Device
	WifiSSID string
}

type CreateDeviceRequest struct {
	ActorRequestMixIn
	ID       string
	Name     string
	Interval int
}

type CreateDeviceResponse struct {
	ActorResponseMixIn
	CommandSent bool
}

type UpdateDeviceRequest struct {
	ActorRequestMixIn
	ID       string
	Name     string
	Interval int
}

type UpdateDeviceResponse struct {
	ActorResponseMixIn
}

type DeleteDeviceRequest struct {
	ActorRequestMixIn
	ID string
}

type DeleteDeviceResponse struct {
	ActorResponseMixIn
}

type SetPowerRequest struct {
	ActorRequestMixIn
	ID string
	On bool
}

type SetPowerResponse struct {
	ActorResponseMixIn
	Sent bool
}

type SetActuatorRequest struct {
	ActorRequestMixIn
	ID       string
	Actuator string
	On       bool
}

type SetActuatorResponse struct {
	ActorResponseMixIn
	Sent bool
}

type DispatchCommandRequest struct {
	ActorRequestMixIn
	ID     string
	Verb   string
	Params map[string]any
}

type DispatchCommandResponse struct {
	ActorResponseMixIn
	Sent      bool
	CommandID string
}

type MasterSwitchRequest struct {
	ActorRequestMixIn
	On bool
}

type MasterSwitchResponse struct {
	ActorResponseMixIn
	DeviceCount int
}

type GetStatusRequest struct {
	ActorRequestMixIn
}

type GetStatusResponse struct {
	ActorResponseMixIn
	BrokerConnected bool
	StoreReady      bool
	WifiSSID        string
	DeviceCount     int
	SystemOn        bool
}

// OpenChartRequest opens (or reuses) the report-detail session for one
// device and returns the requested series. Switching devices resets the
// session cache.
type OpenChartRequest struct {
	ActorRequestMixIn
	DeviceID string
	Kind     string
}

type ChartSeriesResponse struct {
	ActorResponseMixIn
	DeviceID string
	Kind     string
	Labels   []string
	Values   []float64
}

type ExportHistoryRequest struct {
	ActorRequestMixIn
	PerDeviceLimit int
}

type ExportHistoryResponse struct {
	ActorResponseMixIn
	Rows []ExportRow
}

type GetProvisioningRequest struct {
	ActorRequestMixIn
}

// ProvisioningInfo describes a device waiting for WiFi credentials.
type ProvisioningInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	APSSID string `json:"ap_ssid"`
	APIP   string `json:"ap_ip"`
}

type GetProvisioningResponse struct {
	ActorResponseMixIn
	Devices []ProvisioningInfo
}
