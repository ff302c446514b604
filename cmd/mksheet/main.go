// Command mksheet draws a synthetic scanner sheet for trying out
// sheet2photos.
//
//	mksheet -o sheet.png -photo 100,100,300,200,5 -photo 500,150,250,250 -line 0,600,1200,600,3
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ivlev/sheet2photos/internal/config"
	"github.com/ivlev/sheet2photos/internal/dpi"
	"github.com/ivlev/sheet2photos/internal/output"
	"github.com/ivlev/sheet2photos/internal/sheet"
)

// listFlag collects a repeated flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, " ") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	outPtr := flag.String("o", "sheet.png", "output PNG")
	widthPtr := flag.Int("width", 1200, "sheet width")
	heightPtr := flag.Int("height", 900, "sheet height")
	keyPtr := flag.String("key", config.Default().ChromaKeyColor, "background colour")
	dpiPtr := flag.Int("dpi", 150, "density written to the PNG")
	var photos, lines listFlag
	flag.Var(&photos, "photo", "photo as x,y,w,h[,angle]; repeatable")
	flag.Var(&lines, "line", "artifact line as x0,y0,x1,y1,thickness; repeatable")
	flag.Parse()

	s, err := build(*widthPtr, *heightPtr, *keyPtr, photos, lines)
	if err != nil {
		log.Fatalf("bad sheet: %v", err)
	}
	img, err := s.Render()
	if err != nil {
		log.Fatalf("render: %v", err)
	}

	err = output.WriteAtomic(*outPtr, func(w io.Writer) error {
		return output.PNGEncoder{}.Encode(w, img, dpi.Uniform(float64(*dpiPtr)))
	})
	if err != nil {
		log.Fatalf("write %s: %v", *outPtr, err)
	}
	log.Infof("wrote %s: %dx%d, %d photos, %d lines", *outPtr, s.Width, s.Height, len(s.Photos), len(s.Lines))
}

func build(width, height int, key string, photos, lines []string) (*sheet.Sheet, error) {
	c, err := config.ParseKeyColor(key)
	if err != nil {
		return nil, err
	}
	r, g, b := c.RGB255()

	s := sheet.New(width, height)
	s.Key.R, s.Key.G, s.Key.B = r, g, b
	for _, p := range photos {
		rect, angle, err := sheet.ParsePhoto(p)
		if err != nil {
			return nil, err
		}
		s.AddPhoto(rect, angle)
	}
	for _, l := range lines {
		line, err := sheet.ParseLine(l)
		if err != nil {
			return nil, err
		}
		s.Lines = append(s.Lines, line)
	}
	if len(s.Photos) == 0 {
		return nil, fmt.Errorf("no -photo given")
	}
	return s, nil
}
