package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fish-feeder-backend/config"
	"fish-feeder-backend/internal/api"
	"fish-feeder-backend/internal/device"
	"fish-feeder-backend/internal/feeder"
	"fish-feeder-backend/internal/model"
	"fish-feeder-backend/internal/store"
	"fish-feeder-backend/internal/trigger"
)

// TestFeedingLifecycle drives a feeding through the full stack, from the
// HTTP request down to the simulated device and back into the ledger.
func TestFeedingLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	testDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "feeder.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, testDB.AutoMigrate(
		&model.Feeding{},
		&model.DeviceSettings{},
		&model.Schedule{},
		&model.PushSubscription{},
	))

	st := store.NewGormStore(testDB)

	// Simulated hardware with near-zero timings so the background
	// actuation finishes within the test.
	actuator := device.NewSimulated(zerolog.Nop())
	actuator.PulseDuration = time.Millisecond
	actuator.RotateDuration = time.Millisecond

	engine := trigger.New(zerolog.Nop(), time.UTC)
	engine.Start()
	defer engine.Stop()

	svc := feeder.New(st, actuator, engine, zerolog.Nop())
	handler := api.NewHandler(svc, st, nil, zerolog.Nop())
	router := api.NewRouter(handler, config.ServerConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTLSeconds: 1,
	})

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("manual feeding completes in the background", func(t *testing.T) {
		w := do(http.MethodPost, "/api/feedings", nil)
		require.Equal(t, http.StatusAccepted, w.Code)

		var accepted model.Feeding
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
		require.NotZero(t, accepted.ID)

		// The device runs after the response, so the fed timestamp
		// appears shortly afterwards.
		assert.Eventually(t, func() bool {
			var feeding model.Feeding
			if err := testDB.First(&feeding, accepted.ID).Error; err != nil {
				return false
			}
			return feeding.Fed()
		}, 2*time.Second, 10*time.Millisecond)

		w = do(http.MethodGet, "/api/feedings", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var listed []struct {
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
		require.Len(t, listed, 1)
		assert.Equal(t, "Fish were fed", listed[0].Message)
	})

	t.Run("schedules survive into upcoming feedings", func(t *testing.T) {
		w := do(http.MethodPost, "/api/schedules", gin.H{"time": "06:30"})
		require.Equal(t, http.StatusCreated, w.Code)

		w = do(http.MethodGet, "/api/schedules", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var schedules []struct {
			ID          int64      `json:"id"`
			Display     string     `json:"display"`
			NextFeeding *time.Time `json:"next_feeding"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &schedules))
		require.Len(t, schedules, 1)
		assert.Equal(t, "Daily at 06:30", schedules[0].Display)
		require.NotNil(t, schedules[0].NextFeeding)
		assert.True(t, schedules[0].NextFeeding.After(time.Now()))

		w = do(http.MethodGet, "/api/scheduled_feedings", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var upcoming []struct {
			ScheduledTime time.Time `json:"scheduled_time"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upcoming))
		require.Len(t, upcoming, 1)
		assert.WithinDuration(t, *schedules[0].NextFeeding, upcoming[0].ScheduledTime, time.Second)

		w = do(http.MethodDelete, "/api/schedules/1", nil)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("restart rearms persisted schedules", func(t *testing.T) {
		_, err := st.AddSchedule(context.Background(), model.ScheduleDaily, &model.TimeOfDay{Hour: 7, Minute: 0})
		require.NoError(t, err)

		// A fresh engine plus LoadScheduledFeedings is what startup does.
		engine2 := trigger.New(zerolog.Nop(), time.UTC)
		svc2 := feeder.New(st, actuator, engine2, zerolog.Nop())
		require.NoError(t, svc2.LoadScheduledFeedings(context.Background()))

		regs := engine2.ListActive()
		require.Len(t, regs, 1)
		assert.True(t, regs[0].NextFire.After(time.Now()))
	})
}
