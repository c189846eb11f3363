package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/config"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/report"
)

// addrBus pins every transaction to one I2C address, so panels strapped to
// 0x3D work with the ssd1306 driver.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

// DisplayData holds the latest report received over MQTT.
type DisplayData struct {
	mu      sync.RWMutex
	summary report.Summary
	have    bool
}

func (d *DisplayData) set(s report.Summary) {
	d.mu.Lock()
	d.summary = s
	d.have = true
	d.mu.Unlock()
}

func (d *DisplayData) get() (report.Summary, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.summary, d.have
}

// RunDisplay shows the latest report on the SSD1306 OLED until ctx is done.
func RunDisplay(ctx context.Context, logger *zap.Logger) error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("display needs MQTT_BROKER to receive reports")
	}

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(addrBus{Bus: bus, addr: cfg.DisplayI2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	logger.Info("display initialized", zap.String("i2c_addr", fmt.Sprintf("0x%02X", cfg.DisplayI2CAddr)))

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		logger.Warn("display splash failed", zap.Error(err))
	}

	data := &DisplayData{}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	logger.Info("connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))

	token := client.Subscribe(cfg.TopicReport, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s report.Summary
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			logger.Warn("report unmarshal error", zap.Error(err))
			return
		}
		data.set(s)
		logger.Debug("report received", zap.String("id", s.ID), zap.Int("samples", s.Stats.Samples))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	logger.Info("subscribed", zap.String("topic", cfg.TopicReport))

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("display shutting down")
			return nil
		case <-ticker.C:
			s, have := data.get()
			var img *image1bit.VerticalLSB
			if have {
				img = renderSummary(s)
			} else {
				img = renderWaiting()
			}
			if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
				logger.Warn("display update failed", zap.Error(err))
			}
		}
	}
}

// newFrame returns a blank 128x64 frame and a drawer on it.
func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLines(drawer *font.Drawer, x int, lines ...string) {
	for i, line := range lines {
		drawer.Dot = fixed.P(x, 13*(i+1))
		drawer.DrawString(line)
	}
}

func renderSummary(s report.Summary) *image1bit.VerticalLSB {
	img, drawer := newFrame()
	if s.Stats.Samples == 0 {
		drawLines(drawer, 0, "Uroflow", "No data")
		return img
	}
	drawLines(drawer, 0,
		fmt.Sprintf("Qmax %6.1f ml/s", s.Stats.PeakFlow),
		fmt.Sprintf("Qavg %6.1f ml/s", s.Stats.AverageFlow),
		fmt.Sprintf("Vol  %6.0f ml", s.Stats.Volume),
		fmt.Sprintf("Time %6.1f s", s.Stats.Duration),
	)
	return img
}

func renderWaiting() *image1bit.VerticalLSB {
	img, drawer := newFrame()
	drawLines(drawer, 0, "", "Uroflow", "Waiting...")
	return img
}

// splashLines fit the 128px panel at 7px per glyph.
var splashLines = []string{"", "Uroflowmetry", "Uroflowmetry-001"}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newFrame()
	drawLines(drawer, 4, splashLines...)
	return img
}
