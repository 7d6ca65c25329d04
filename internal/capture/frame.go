package capture

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Rotate180 rotates a frame in place by 180 degrees. Only 0 and 180 degree
// rotations are supported by the camera pipeline, so this is the sole
// rotation primitive.
func Rotate180(frame *gocv.Mat) {
	gocv.Rotate(*frame, frame, gocv.Rotate180Clockwise)
}

// EncodeJPEG encodes a frame as JPEG at the given quality (1..100) and
// returns a private copy of the encoded bytes, safe to hold after the Mat
// and the encoder buffer are gone.
func EncodeJPEG(frame *gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(".jpg", *frame, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// ToLuma converts a frame to a raw brightness-only buffer. The returned
// slice is a private copy laid out row-major at the returned dimensions.
func ToLuma(frame *gocv.Mat) (pix []byte, width, height int, err error) {
	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	if gray.Empty() {
		return nil, 0, 0, fmt.Errorf("luma conversion produced an empty image")
	}

	data := gray.ToBytes()
	pix = make([]byte, len(data))
	copy(pix, data)

	return pix, gray.Cols(), gray.Rows(), nil
}
