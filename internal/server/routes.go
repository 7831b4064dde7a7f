package server

import (
	"net/http"
	"strconv"
	"time"

	"roomsense/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const requestTimeout = 10 * time.Second

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/status", s.StatusHandler)

	e.GET("/devices", s.ListDevicesHandler)
	e.POST("/devices", s.CreateDeviceHandler)
	e.GET("/devices/provisioning", s.ProvisioningHandler)
	e.PUT("/devices/:id", s.UpdateDeviceHandler)
	e.DELETE("/devices/:id", s.DeleteDeviceHandler)
	e.POST("/devices/:id/power", s.SetPowerHandler)
	e.POST("/devices/:id/actuators/:name", s.SetActuatorHandler)
	e.POST("/devices/:id/commands", s.DispatchCommandHandler)
	e.GET("/devices/:id/chart/:kind", s.ChartHandler)

	e.POST("/system/power", s.MasterSwitchHandler)
	e.GET("/history/export", s.ExportHistoryHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.request(domain.ActorHealthRequest{})
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.JSON(http.StatusOK, map[string]any{
			"status":  "ok",
			"version": versioninfo.Short(),
		})
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) StatusHandler(c echo.Context) error {
	res, err := s.request(domain.GetStatusRequest{})
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.GetStatusResponse)
	if !ok || response.HasResponseError() {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"broker_connected": response.BrokerConnected,
		"store_ready":      response.StoreReady,
		"wifi_ssid":        response.WifiSSID,
		"device_count":     response.DeviceCount,
		"system_on":        response.SystemOn,
	})
}

func (s *Server) ListDevicesHandler(c echo.Context) error {
	res, err := s.request(domain.GetDevicesRequest{})
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.GetDevicesResponse)
	if !ok || response.HasResponseError() {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"devices":   response.Devices,
		"wifi_ssid": response.WifiSSID,
	})
}

type deviceBody struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Interval int    `json:"interval"`
}

func (s *Server) CreateDeviceHandler(c echo.Context) error {
	var body deviceBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	res, err := s.request(domain.CreateDeviceRequest{
		ID:       body.ID,
		Name:     body.Name,
		Interval: body.Interval,
	})
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.CreateDeviceResponse)
	if !ok {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	if response.HasResponseError() {
		return c.JSON(http.StatusBadRequest, errorBody(response.GetResponseError()))
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"command_sent": response.CommandSent,
	})
}

func (s *Server) UpdateDeviceHandler(c echo.Context) error {
	var body deviceBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	res, err := s.request(domain.UpdateDeviceRequest{
		ID:       c.Param("id"),
		Name:     body.Name,
		Interval: body.Interval,
	})
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.UpdateDeviceResponse)
	if !ok {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	if response.HasResponseError() {
		return c.JSON(http.StatusBadRequest, errorBody(response.GetResponseError()))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) DeleteDeviceHandler(c echo.Context) error {
	res, err := s.request(domain.DeleteDeviceRequest{ID: c.Param("id")})
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.DeleteDeviceResponse)
	if !ok || response.HasResponseError() {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusNoContent)
}

type switchBody struct {
	On bool `json:"on"`
}

func (s *Server) SetPowerHandler(c echo.Context) error {
	var body switchBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	res, err := s.request(domain.SetPowerRequest{ID: c.Param("id"), On: body.On})
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.SetPowerResponse)
	if !ok {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, map[string]any{"sent": response.Sent})
}

func (s *Server) SetActuatorHandler(c echo.Context) error {
	var body switchBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	res, err := s.request(domain.SetActuatorRequest{
		ID:       c.Param("id"),
		Actuator: c.Param("name"),
		On:       body.On,
	})
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.SetActuatorResponse)
	if !ok {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, map[string]any{"sent": response.Sent})
}

type commandBody struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params"`
}

func (s *Server) DispatchCommandHandler(c echo.Context) error {
	var body commandBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	if body.Command == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "command required"})
	}
	res, err := s.request(domain.DispatchCommandRequest{
		ID:     c.Param("id"),
		Verb:   body.Command,
		Params: body.Params,
	})
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.DispatchCommandResponse)
	if !ok {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"sent":       response.Sent,
		"command_id": response.CommandID,
	})
}

func (s *Server) MasterSwitchHandler(c echo.Context) error {
	var body switchBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	res, err := s.request(domain.MasterSwitchRequest{On: body.On})
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.MasterSwitchResponse)
	if !ok {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	if response.HasResponseError() {
		return c.JSON(http.StatusServiceUnavailable, errorBody(response.GetResponseError()))
	}
	return c.JSON(http.StatusOK, map[string]any{"device_count": response.DeviceCount})
}

func (s *Server) ChartHandler(c echo.Context) error {
	res, err := s.request(domain.OpenChartRequest{
		DeviceID: c.Param("id"),
		Kind:     c.Param("kind"),
	})
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.ChartSeriesResponse)
	if !ok {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	if response.HasResponseError() {
		return c.JSON(http.StatusBadRequest, errorBody(response.GetResponseError()))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"device_id": response.DeviceID,
		"kind":      response.Kind,
		"labels":    response.Labels,
		"values":    response.Values,
	})
}

func (s *Server) ProvisioningHandler(c echo.Context) error {
	res, err := s.request(domain.GetProvisioningRequest{})
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.GetProvisioningResponse)
	if !ok || response.HasResponseError() {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, map[string]any{"devices": response.Devices})
}

func (s *Server) ExportHistoryHandler(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid limit"})
		}
		limit = n
	}
	res, err := s.request(domain.ExportHistoryRequest{PerDeviceLimit: limit})
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.ExportHistoryResponse)
	if !ok {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	if response.HasResponseError() {
		return c.JSON(http.StatusServiceUnavailable, errorBody(response.GetResponseError()))
	}
	return c.JSON(http.StatusOK, map[string]any{"rows": response.Rows})
}

func (s *Server) request(msg any) (any, error) {
	return s.rootContext.RequestFuture(s.masterActor, msg, requestTimeout).Result()
}

func errorBody(err error) map[string]any {
	return map[string]any{"error": err.Error()}
}
