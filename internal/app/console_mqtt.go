package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/config"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/report"
)

// RunConsoleMQTT prints every report and window published on the broker
// until ctx is done.
func RunConsoleMQTT(ctx context.Context, out io.Writer, logger *zap.Logger) error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("console needs MQTT_BROKER to receive reports")
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	logger.Info("console: connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))

	reportToken := client.Subscribe(cfg.TopicReport, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s report.Summary
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			logger.Warn("console: report unmarshal error", zap.Error(err))
			return
		}
		fmt.Fprintln(out, formatReportLine(s))
	})
	reportToken.Wait()
	if reportToken.Error() != nil {
		return reportToken.Error()
	}
	logger.Info("console: subscribed", zap.String("topic", cfg.TopicReport))

	samplesToken := client.Subscribe(cfg.TopicSamples, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var w flow.Window
		if err := json.Unmarshal(msg.Payload(), &w); err != nil {
			logger.Warn("console: samples unmarshal error", zap.Error(err))
			return
		}
		fmt.Fprintln(out, formatWindowLine(w))
	})
	samplesToken.Wait()
	if samplesToken.Error() != nil {
		return samplesToken.Error()
	}
	logger.Info("console: subscribed", zap.String("topic", cfg.TopicSamples))

	<-ctx.Done()

	logger.Info("console: shutting down")
	client.Disconnect(250)
	return nil
}

func formatReportLine(s report.Summary) string {
	return fmt.Sprintf(
		"[REPORT] %s  mode=%-12s n=%4d  T=%6.2fs  Qavg=%6.2f  Qmax=%6.2f mL/s  V=%7.2f mL",
		s.Generated.Format("15:04:05"), s.Mode, s.Stats.Samples,
		s.Stats.Duration, s.Stats.AverageFlow, s.Stats.PeakFlow, s.Stats.Volume,
	)
}

func formatWindowLine(w flow.Window) string {
	if w.Empty() {
		return "[FLOW  ] no data"
	}
	last := w.Samples[len(w.Samples)-1]
	return fmt.Sprintf("[FLOW  ] mode=%-12s n=%4d  last t=%6.2fs flow=%6.2f mL/s",
		w.Mode, len(w.Samples), last.Time, last.Flow)
}
