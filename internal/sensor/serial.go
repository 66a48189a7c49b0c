package sensor

import (
	"bufio"
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robudan/acoustic-logger/internal/errors"
	"go.bug.st/serial"
)

// lineDriver is a line-oriented request/response serial driver shared by
// the mk3 and mk4 sound-level-meter variants. Each model differs only in
// its command vocabulary, supplied via cmdSet.
type lineDriver struct {
	mu     sync.Mutex
	port   serial.Port
	reader *bufio.Reader
	cmds   commandSet
}

// commandSet names the device-specific command strings. Different sensor
// firmware revisions expose the same capability set over slightly
// different ASCII command syntax.
type commandSet struct {
	instantLevel   string
	energySample   string
	temperature    string
	model          string
	firmware       string
	manufactureDob string
	calibrateDoc   string
	readWeighting  string
	writeWeighting func(weighting string) string
	writeTau       func(seconds float64) string
	writeFs        func(hz int) string
}

func openLineDriver(path string, cmds commandSet) (*lineDriver, error) {
	mode := &serial.Mode{BaudRate: 9600}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, errors.New(err).
			Component("sensor").
			Category(errors.CategoryDevice).
			Context("port", path).
			Build()
	}
	if err := port.SetReadTimeout(2 * time.Second); err != nil {
		port.Close()
		return nil, errors.New(err).Component("sensor").Category(errors.CategoryDevice).Build()
	}

	return &lineDriver{
		port:   port,
		reader: bufio.NewReader(port),
		cmds:   cmds,
	}, nil
}

func (d *lineDriver) query(ctx context.Context, cmd string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if _, err := d.port.Write([]byte(cmd + "\r\n")); err != nil {
		return "", errors.New(err).
			Component("sensor").
			Category(errors.CategoryDevice).
			Context("cmd", cmd).
			Build()
	}

	line, err := d.reader.ReadString('\n')
	if err != nil {
		return "", errors.New(err).
			Component("sensor").
			Category(errors.CategoryDevice).
			Context("cmd", cmd).
			Build()
	}
	return strings.TrimSpace(line), nil
}

func (d *lineDriver) queryFloat(ctx context.Context, cmd string) (float64, error) {
	reply, err := d.query(ctx, cmd)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, errors.New(err).
			Component("sensor").
			Category(errors.CategoryValidation).
			Context("reply", reply).
			Build()
	}
	return value, nil
}

func (d *lineDriver) ReadInstantLevel(ctx context.Context) (float64, error) {
	return d.queryFloat(ctx, d.cmds.instantLevel)
}

func (d *lineDriver) ReadEnergySample(ctx context.Context) (float64, error) {
	return d.queryFloat(ctx, d.cmds.energySample)
}

func (d *lineDriver) ReadTemperature(ctx context.Context) (float64, bool, error) {
	if d.cmds.temperature == "" {
		return 0, false, nil
	}
	value, err := d.queryFloat(ctx, d.cmds.temperature)
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

func (d *lineDriver) ReadModel(ctx context.Context) (string, error) {
	return d.query(ctx, d.cmds.model)
}

func (d *lineDriver) ReadFirmware(ctx context.Context) (string, error) {
	return d.query(ctx, d.cmds.firmware)
}

func (d *lineDriver) ReadManufacturingDate(ctx context.Context) (time.Time, error) {
	return d.readDate(ctx, d.cmds.manufactureDob)
}

func (d *lineDriver) ReadCalibrationDate(ctx context.Context) (time.Time, error) {
	return d.readDate(ctx, d.cmds.calibrateDoc)
}

func (d *lineDriver) readDate(ctx context.Context, cmd string) (time.Time, error) {
	reply, err := d.query(ctx, cmd)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse("2006-01-02", reply)
	if err != nil {
		return time.Time{}, errors.New(err).
			Component("sensor").
			Category(errors.CategoryValidation).
			Context("reply", reply).
			Build()
	}
	return t, nil
}

func (d *lineDriver) ReadWeighting(ctx context.Context) (string, error) {
	return d.query(ctx, d.cmds.readWeighting)
}

func (d *lineDriver) WriteWeighting(ctx context.Context, weighting string) error {
	_, err := d.query(ctx, d.cmds.writeWeighting(weighting))
	return err
}

func (d *lineDriver) WriteTau(ctx context.Context, seconds float64) error {
	_, err := d.query(ctx, d.cmds.writeTau(seconds))
	return err
}

func (d *lineDriver) WriteFs(ctx context.Context, hz int) error {
	_, err := d.query(ctx, d.cmds.writeFs(hz))
	return err
}

func (d *lineDriver) Close() error {
	return d.port.Close()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
