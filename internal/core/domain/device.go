package domain

// Device is the dashboard's read model of one sensor/actuator node.
// It mirrors the flat field map stored under devices/{id}; sensor
// readings stay nil until the board reports for the first time.
type Device struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Interval int    `json:"interval"`
	Mode     string `json:"mode"`

	Temp  *float64 `json:"temp,omitempty"`
	Humid *float64 `json:"humid,omitempty"`
	Lux   *float64 `json:"lux,omitempty"`

	FanActive  bool `json:"fan_active"`
	LampActive bool `json:"lamp_active"`
	ACActive   bool `json:"ac_active"`

	WifiSSID   string `json:"wifi_ssid,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	MQTTBroker string `json:"mqtt_broker,omitempty"`
	Firmware   string `json:"firmware,omitempty"`

	LastUpdate int64 `json:"last_update,omitempty"`

	SetupMode bool   `json:"setup_mode,omitempty"`
	APSSID    string `json:"ap_ssid,omitempty"`
	APIP      string `json:"ap_ip,omitempty"`
}

// HistorySample is one persisted (temp, humid, lux, timestamp) tuple,
// an append-only child of history/{deviceId}. Never mutated.
type HistorySample struct {
	Temp       float64 `json:"temp"`
	Humid      float64 `json:"humid"`
	Lux        float64 `json:"lux"`
	LastUpdate int64   `json:"last_update"`
}

// ExportRow is one line of the aggregated history feed, joined with the
// room name the device had at export time.
type ExportRow struct {
	Room       string  `json:"room"`
	DeviceID   string  `json:"device_id"`
	Time       int64   `json:"time"`
	Temp       float64 `json:"temp"`
	Humid      float64 `json:"humid"`
	Lux        float64 `json:"lux"`
}

const (
	DefaultInterval = 30
	ModePeriodic    = "periodic"
	ModeManual      = "manual"
)

// DeviceFromFields builds a Device from a stored field map. Unknown
// fields are ignored, missing ones keep their zero value.
func DeviceFromFields(id string, fields map[string]any) Device {
	d := Device{ID: id, Interval: DefaultInterval}
	if fields == nil {
		return d
	}
	if v, ok := fields["name"].(string); ok {
		d.Name = v
	}
	d.Active = boolField(fields, "active")
	if v, ok := numField(fields, "interval"); ok {
		d.Interval = int(v)
	}
	if v, ok := fields["mode"].(string); ok {
		d.Mode = v
	}
	if v, ok := numField(fields, "temp"); ok {
		d.Temp = &v
	}
	if v, ok := numField(fields, "humid"); ok {
		d.Humid = &v
	}
	if v, ok := numField(fields, "lux"); ok {
		d.Lux = &v
	}
	d.FanActive = boolField(fields, "fan_active")
	d.LampActive = boolField(fields, "lamp_active")
	d.ACActive = boolField(fields, "ac_active")
	if v, ok := fields["wifi_ssid"].(string); ok {
		d.WifiSSID = v
	}
	if v, ok := fields["ip_address"].(string); ok {
		d.IPAddress = v
	}
	if v, ok := fields["mqtt_broker"].(string); ok {
		d.MQTTBroker = v
	}
	if v, ok := fields["firmware"].(string); ok {
		d.Firmware = v
	}
	if v, ok := numField(fields, "last_update"); ok {
		d.LastUpdate = int64(v)
	}
	d.SetupMode = boolField(fields, "setup_mode")
	if v, ok := fields["ap_ssid"].(string); ok {
		d.APSSID = v
	}
	if v, ok := fields["ap_ip"].(string); ok {
		d.APIP = v
	}
	return d
}

func SampleFromFields(fields map[string]any) HistorySample {
	var s HistorySample
	if v, ok := numField(fields, "temp"); ok {
		s.Temp = v
	}
	if v, ok := numField(fields, "humid"); ok {
		s.Humid = v
	}
	if v, ok := numField(fields, "lux"); ok {
		s.Lux = v
	}
	if v, ok := numField(fields, "last_update"); ok {
		s.LastUpdate = int64(v)
	}
	return s
}

func numField(fields map[string]any, key string) (float64, bool) {
	switch v := fields[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	}
	return 0, false
}

func boolField(fields map[string]any, key string) bool {
	v, ok := fields[key].(bool)
	return ok && v
}
