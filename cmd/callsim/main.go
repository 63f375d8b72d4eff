// callsim drives simulated call sessions against a real token endpoint: N
// controllers join with mock media engines, renew on a fixed interval, and
// tear down cleanly. Useful for soaking tokend and the session lifecycle
// without browsers or cameras.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Baoanh2610/callvideo/internal/credential"
	"github.com/Baoanh2610/callvideo/internal/rtc"
	"github.com/Baoanh2610/callvideo/internal/session"
)

func main() {
	endpoint := flag.String("endpoint", "http://localhost:8080/api/token", "token endpoint URL")
	appID := flag.String("app-id", "callsim", "app id passed to the engine")
	channel := flag.String("channel", "soak", "channel to join")
	sessions := flag.Int("sessions", 5, "number of concurrent sessions")
	duration := flag.Duration("duration", 1*time.Minute, "how long to run")
	renewEvery := flag.Duration("renew-every", 10*time.Second, "forced renewal interval")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	type sim struct {
		ctrl   *session.Controller
		engine *rtc.MockEngine
	}

	sims := make([]sim, 0, *sessions)
	for i := 0; i < *sessions; i++ {
		engine := &rtc.MockEngine{Recorder: &rtc.CallRecorder{}}
		ctrl := session.New(session.Config{
			AppID:       *appID,
			Engine:      engine,
			Credentials: credential.NewStore(credential.NewFetcher(*endpoint)),
			Logger:      logger.With(zap.Int("sim", i)),
		})
		ctrl.Ensure(fmt.Sprintf("sim%d-%s", i, uuid.NewString()[:8]), *channel)
		sims = append(sims, sim{ctrl: ctrl, engine: engine})
	}

	ticker := time.NewTicker(*renewEvery)
	defer ticker.Stop()
	deadline := time.After(*duration)

loop:
	for {
		select {
		case <-ticker.C:
			for _, s := range sims {
				if s.ctrl.Status().State != session.StateJoined {
					continue
				}
				for _, conn := range s.engine.Conns() {
					if !conn.Left() {
						conn.Emit(rtc.Event{Kind: rtc.EventTokenWillExpire})
					}
				}
			}
		case <-deadline:
			break loop
		}
	}

	counts := map[session.State]int{}
	for _, s := range sims {
		counts[s.ctrl.Status().State]++
	}
	for state, n := range counts {
		logger.Info("final state", zap.Stringer("state", state), zap.Int("sessions", n))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, s := range sims {
		if err := s.ctrl.Close(ctx); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
	logger.Info("callsim done")
}
