package dpi

import (
	"bytes"
	"encoding/binary"

	jseg "github.com/garyhouston/jpegsegs"
	tiff "github.com/garyhouston/tiff66"
)

// TIFF/Exif IFD0 tags.
const (
	tagXResolution    = 0x011A
	tagYResolution    = 0x011B
	tagResolutionUnit = 0x0128
)

const cmPerInch = 2.54

var (
	exifHeader = []byte("Exif\x00\x00")
	jfifHeader = []byte("JFIF\x00")
)

// Detect returns the density embedded in an encoded image, if any.
// JPEG (Exif first, then JFIF), TIFF and PNG are understood.
func Detect(data []byte) (Dpi, bool) {
	switch {
	case len(data) >= 2 && jseg.IsJPEGHeader(data):
		return fromJPEG(data)
	case bytes.HasPrefix(data, pngSignature):
		return FromPNG(data)
	default:
		return fromTIFF(data)
	}
}

func fromJPEG(data []byte) (Dpi, bool) {
	scanner, err := jseg.NewScanner(bytes.NewReader(data))
	if err != nil {
		return Dpi{}, false
	}

	var jfif Dpi
	var haveJFIF bool
	for {
		marker, buf, err := scanner.Scan()
		if err != nil {
			break
		}
		switch {
		case marker == jseg.APP0+1 && bytes.HasPrefix(buf, exifHeader):
			if d, ok := fromTIFF(buf[len(exifHeader):]); ok {
				return d, true
			}
		case marker == jseg.APP0 && !haveJFIF:
			jfif, haveJFIF = parseJFIF(buf)
		}
		if marker == jseg.SOS {
			break
		}
	}
	return jfif, haveJFIF
}

// parseJFIF reads the density fields of an APP0 JFIF segment.
func parseJFIF(buf []byte) (Dpi, bool) {
	if len(buf) < 12 || !bytes.HasPrefix(buf, jfifHeader) {
		return Dpi{}, false
	}
	x := float64(binary.BigEndian.Uint16(buf[8:10]))
	y := float64(binary.BigEndian.Uint16(buf[10:12]))
	var d Dpi
	switch buf[7] {
	case 1:
		d = Dpi{X: x, Y: y}
	case 2:
		d = Dpi{X: x * cmPerInch, Y: y * cmPerInch}
	default:
		// aspect ratio only
		return Dpi{}, false
	}
	return d, d.Valid()
}

func fromTIFF(buf []byte) (Dpi, bool) {
	if len(buf) < int(tiff.HeaderSize) {
		return Dpi{}, false
	}
	valid, order, pos := tiff.GetHeader(buf)
	if !valid {
		return Dpi{}, false
	}
	node, err := tiff.GetIFDTree(buf, order, pos, tiff.TIFFSpace)
	if err != nil || node == nil {
		return Dpi{}, false
	}

	var x, y float64
	unit := uint16(2) // TIFF default is inches
	for _, f := range node.Fields {
		switch f.Tag {
		case tagXResolution:
			if f.Type == tiff.RATIONAL && f.Count > 0 {
				x = ratio(f.Long(0, order), f.Long(1, order))
			}
		case tagYResolution:
			if f.Type == tiff.RATIONAL && f.Count > 0 {
				y = ratio(f.Long(0, order), f.Long(1, order))
			}
		case tagResolutionUnit:
			if f.Type == tiff.SHORT && f.Count > 0 {
				unit = f.Short(0, order)
			}
		}
	}

	var d Dpi
	switch unit {
	case 2:
		d = Dpi{X: x, Y: y}
	case 3:
		d = Dpi{X: x * cmPerInch, Y: y * cmPerInch}
	default:
		return Dpi{}, false
	}
	if d.Y == 0 {
		d.Y = d.X
	}
	return d, d.Valid()
}

func ratio(num, den uint32) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
