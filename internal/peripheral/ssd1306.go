package peripheral

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
	"periph.io/x/conn/v3/i2c"
)

// SSD1306 protocol constants.
const (
	oledWidth  = 128
	oledHeight = 64
	oledPages  = oledHeight / 8

	oledControlCmd  byte = 0x00
	oledControlData byte = 0x40

	oledDisplayOff  byte = 0xAE
	oledDisplayOn   byte = 0xAF
	oledSetContrast byte = 0x81
	oledNormal      byte = 0xA6
	oledInverse     byte = 0xA7
	oledColumnAddr  byte = 0x21
	oledPageAddr    byte = 0x22

	// oledChunk is the number of frame bytes sent per I2C write.
	oledChunk = 32
)

// oledInit is the power-up sequence for a 128x64 panel with an internal
// charge pump.
var oledInit = []byte{
	oledDisplayOff,
	0xD5, 0x80, // clock divide
	0xA8, oledHeight - 1, // multiplex ratio
	0xD3, 0x00, // display offset
	0x40,       // start line 0
	0x8D, 0x14, // charge pump on
	0x20, 0x00, // horizontal addressing
	0xA1,       // segment remap
	0xC8,       // COM scan descending
	0xDA, 0x12, // COM pins
	oledSetContrast, 0xCF,
	0xD9, 0xF1, // precharge
	0xDB, 0x40, // VCOMH deselect
	0xA4, // resume from RAM
	oledNormal,
	oledDisplayOn,
}

// SSD1306 drives a 128x64 monochrome OLED. Drawing commands render into an
// off-screen canvas and are flushed to the panel straight away:
//
//	clear
//	text <string> <x> <y>
//	pixel <x> <y> [c]
//	line <x0> <y0> <x1> <y1> [c]
//	rect <x> <y> <w> <h> [c]
//	fill_rect <x> <y> <w> <h> [c]
//	show
//	invert <0|1>
//	contrast <0-255>
//
// Colour c is 1 (lit, the default) or 0 (dark). Read reports the panel size.
type SSD1306 struct {
	device
	canvas *gg.Context
}

// NewSSD1306 returns a driver for a 128x64 SSD1306 panel at addr (0x3C or 0x3D).
func NewSSD1306(bus i2c.Bus, name string, addr uint16) *SSD1306 {
	d := &SSD1306{canvas: gg.NewContext(oledWidth, oledHeight)}
	d.init(bus, name, TypeSSD1306, addr)
	d.canvas.SetFontFace(basicfont.Face7x13)
	d.canvas.SetLineWidth(1)
	return d
}

// Setup initialises the controller and shows a blank frame.
func (d *SSD1306) Setup(ctx context.Context) error {
	if err := d.beginSetup(); err != nil {
		return err
	}
	if err := d.command(oledInit...); err != nil {
		return d.hardwareErr("init sequence", err)
	}
	d.clear()
	if err := d.show(); err != nil {
		return d.hardwareErr("first frame", err)
	}
	d.markReady()
	return nil
}

// Read returns Fields{width, height}.
func (d *SSD1306) Read(ctx context.Context) (Value, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	return Fields{
		{Name: "width", Value: oledWidth},
		{Name: "height", Value: oledHeight},
	}, nil
}

// Write draws or configures; see SSD1306.
func (d *SSD1306) Write(ctx context.Context, command string, args []any) error {
	if err := d.ready(); err != nil {
		return err
	}

	var err error
	switch strings.ToLower(command) {
	case "clear":
		d.clear()
	case "show":
	case "text":
		err = d.drawText(command, args)
	case "pixel":
		err = d.drawPixel(command, args)
	case "line":
		err = d.drawShape(command, args, func(a [4]float64) {
			d.canvas.DrawLine(a[0]+0.5, a[1]+0.5, a[2]+0.5, a[3]+0.5)
			d.canvas.Stroke()
		})
	case "rect":
		err = d.drawShape(command, args, func(a [4]float64) {
			d.canvas.DrawRectangle(a[0]+0.5, a[1]+0.5, a[2]-1, a[3]-1)
			d.canvas.Stroke()
		})
	case "fill_rect":
		err = d.drawShape(command, args, func(a [4]float64) {
			d.canvas.DrawRectangle(a[0], a[1], a[2], a[3])
			d.canvas.Fill()
		})
	case "invert":
		var on int
		if on, err = intArgIn(command, args, 0, 0, 1); err == nil {
			mode := oledNormal
			if on == 1 {
				mode = oledInverse
			}
			if cmdErr := d.command(mode); cmdErr != nil {
				return d.writeErr(command, cmdErr)
			}
		}
		return err
	case "contrast":
		var level int
		if level, err = intArgIn(command, args, 0, 0, 255); err == nil {
			if cmdErr := d.command(oledSetContrast, byte(level)); cmdErr != nil {
				return d.writeErr(command, cmdErr)
			}
		}
		return err
	default:
		return d.unknownCommand(command)
	}
	if err != nil {
		return err
	}

	if err := d.show(); err != nil {
		return d.writeErr(command, err)
	}
	return nil
}

// Cleanup blanks the panel and switches it off.
func (d *SSD1306) Cleanup(ctx context.Context) error {
	if !d.markClosed() {
		return nil
	}
	d.clear()
	if err := d.show(); err != nil {
		return fmt.Errorf("%s: blank: %w", d.name, err)
	}
	if err := d.command(oledDisplayOff); err != nil {
		return fmt.Errorf("%s: display off: %w", d.name, err)
	}
	return nil
}

func (d *SSD1306) clear() {
	d.canvas.SetColor(color.Black)
	d.canvas.Clear()
}

func (d *SSD1306) setInk(c int) {
	if c == 0 {
		d.canvas.SetColor(color.Black)
		return
	}
	d.canvas.SetColor(color.White)
}

// drawText places s with its top-left corner at (x, y).
func (d *SSD1306) drawText(command string, args []any) error {
	if err := needArgs(command, args, 3); err != nil {
		return err
	}
	s, err := stringArg(command, args, 0)
	if err != nil {
		return err
	}
	x, err := intArg(command, args, 1)
	if err != nil {
		return err
	}
	y, err := intArg(command, args, 2)
	if err != nil {
		return err
	}
	d.setInk(1)
	d.canvas.DrawString(s, float64(x), float64(y+basicfont.Face7x13.Ascent))
	return nil
}

func (d *SSD1306) drawPixel(command string, args []any) error {
	if err := needArgs(command, args, 2); err != nil {
		return err
	}
	x, err := intArg(command, args, 0)
	if err != nil {
		return err
	}
	y, err := intArg(command, args, 1)
	if err != nil {
		return err
	}
	c, err := optIntArg(command, args, 2, 1)
	if err != nil {
		return err
	}
	d.setInk(c)
	d.canvas.SetPixel(x, y)
	return nil
}

// drawShape parses four integer coordinates and an optional colour, then draws.
func (d *SSD1306) drawShape(command string, args []any, draw func([4]float64)) error {
	if err := needArgs(command, args, 4); err != nil {
		return err
	}
	var coords [4]float64
	for i := range coords {
		n, err := intArg(command, args, i)
		if err != nil {
			return err
		}
		coords[i] = float64(n)
	}
	c, err := optIntArg(command, args, 4, 1)
	if err != nil {
		return err
	}
	d.setInk(c)
	draw(coords)
	return nil
}

func (d *SSD1306) command(cmds ...byte) error {
	return d.writeReg(oledControlCmd, cmds...)
}

// show sends the whole canvas to display RAM.
func (d *SSD1306) show() error {
	if err := d.command(oledColumnAddr, 0, oledWidth-1, oledPageAddr, 0, oledPages-1); err != nil {
		return err
	}
	frame := d.frame()
	for off := 0; off < len(frame); off += oledChunk {
		if err := d.writeReg(oledControlData, frame[off:off+oledChunk]...); err != nil {
			return err
		}
	}
	return nil
}

// frame packs the canvas into SSD1306 page order: one byte per column per
// 8-row page, least significant bit at the top.
func (d *SSD1306) frame() []byte {
	img := d.canvas.Image()
	buf := make([]byte, oledWidth*oledPages)
	for page := 0; page < oledPages; page++ {
		for x := 0; x < oledWidth; x++ {
			var b byte
			for bit := 0; bit < 8; bit++ {
				if lit(img, x, page*8+bit) {
					b |= 1 << bit
				}
			}
			buf[page*oledWidth+x] = b
		}
	}
	return buf
}

func lit(img image.Image, x, y int) bool {
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y >= 0x80
}
