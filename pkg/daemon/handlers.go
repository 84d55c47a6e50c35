package daemon

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/chargemon/chargemon/pkg/history"
	"github.com/chargemon/chargemon/pkg/retention"
	"github.com/chargemon/chargemon/pkg/types"
	"github.com/chargemon/chargemon/pkg/version"
)

// defaultCleanupCount is used when a cleanup request names no count, the
// same default the dashboard's cleanup form starts at.
const defaultCleanupCount = 50

const defaultHistoryLimit = 50

func getStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, monitor.Status())
}

func getConfig(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, conf.CycleConfig())
}

func setConfig(c *gin.Context) {
	var cc types.CycleConfig
	if err := c.BindJSON(&cc); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if cc.TargetVoltageV <= 0 || cc.BatteryCapacityMah <= 0 {
		err := fmt.Errorf("targetVoltageV and batteryCapacityMah must be positive, got %v and %d",
			cc.TargetVoltageV, cc.BatteryCapacityMah)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetCycleConfig(cc)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("cycle config set: target %.2fV, capacity %dmAh, vref %.2fV, iref %.2fA",
		cc.TargetVoltageV, cc.BatteryCapacityMah, conf.Vref(), conf.Iref())
	c.IndentedJSON(http.StatusCreated, conf.CycleConfig())
}

func postCleanup(c *gin.Context) {
	var req types.RetentionRequest
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.IndentedJSON(http.StatusBadRequest, err.Error())
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
	}

	// Requests without an explicit mode get it inferred from which
	// parameter was supplied; a bare request means "oldest 50".
	if req.Mode == "" {
		if req.OlderThanMs > 0 {
			req.Mode = types.RetentionModeAge
		} else {
			req.Mode = types.RetentionModeCount
			if req.DeleteCount == 0 {
				req.DeleteCount = defaultCleanupCount
			}
		}
	}

	if err := retention.Validate(req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, types.RetentionResult{
			Success: false, Message: "invalid request", Error: err.Error(),
		})
		return
	}

	collection, err := collectionFromParam(c.DefaultQuery("collection", "charger"))
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, types.RetentionResult{
			Success: false, Message: "invalid request", Error: err.Error(),
		})
		return
	}

	res := monitor.Cleanup(collection, req)
	if !res.Success {
		c.IndentedJSON(http.StatusInternalServerError, res)
		return
	}
	c.IndentedJSON(http.StatusOK, res)
}

func postClearCycle(c *gin.Context) {
	res := monitor.ClearCycle()
	if !res.Success {
		c.IndentedJSON(http.StatusInternalServerError, res)
		return
	}
	c.IndentedJSON(http.StatusOK, res)
}

func getHistory(c *gin.Context) {
	collection, err := collectionFromParam(c.DefaultQuery("collection", "charger"))
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.IndentedJSON(http.StatusBadRequest, fmt.Sprintf("limit must be a positive integer, got %q", raw))
			return
		}
	}

	recs, err := monitor.History(collection, limit)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, recs)
}

// getEvents streams cycle transitions as server-sent events until the
// client disconnects.
func getEvents(c *gin.Context) {
	hub := monitor.Events()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")

	c.Stream(func(_ io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{
		"version":   version.Version,
		"gitCommit": version.GitCommit,
	})
}

func collectionFromParam(name string) (string, error) {
	switch name {
	case "charger", history.CollectionCharger:
		return history.CollectionCharger, nil
	case "temperature", "temp", history.CollectionTemperature:
		return history.CollectionTemperature, nil
	case "legacy", history.CollectionLegacy:
		return history.CollectionLegacy, nil
	}
	return "", fmt.Errorf("unknown collection %q", name)
}
