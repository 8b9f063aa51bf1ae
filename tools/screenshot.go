package tools

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/m4xw311/parley/errors"
	"golang.org/x/image/draw"
)

// screenshotDir is where captured images are stored, relative to the
// working directory.
const screenshotDir = "screenshot"

// ScreenshotTool captures the screen via OS-specific utilities.
type ScreenshotTool struct{}

// targetPixels caps attached screenshots at roughly one megapixel to
// keep image token cost inside the compaction budget.
const targetPixels = 1_000_000

func (t *ScreenshotTool) Name() string { return "screenshot" }
func (t *ScreenshotTool) Description() string {
	return "Takes a screenshot of the entire screen, optionally cropped to a bounding box, and saves it as a PNG downscaled to about one megapixel. Returns the relative path to the saved image."
}
func (t *ScreenshotTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"bbox": map[string]interface{}{
				"type":        "object",
				"description": "Optional crop region. Either {x, y, width, height} or {x1, y1, x2, y2} in pixels.",
			},
		},
	}
}

func (t *ScreenshotTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := os.MkdirAll(screenshotDir, 0755); err != nil {
		return "", errors.Wrapf(err, "could not create screenshot directory")
	}
	name := uuid.New().String()[:8] + ".png"
	path := filepath.Join(screenshotDir, name)

	if err := capture(ctx, path); err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", errors.New("screenshot file was not created at %s", path)
	}

	bbox, _ := args["bbox"].(map[string]interface{})
	if err := postprocess(path, bbox); err != nil {
		return "", err
	}
	return path, nil
}

// postprocess rewrites the capture in place: crop to the bounding box
// when one was given, then downscale to the attachment size cap.
func postprocess(path string, bbox map[string]interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "could not open screenshot %s", path)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return errors.Wrapf(err, "could not decode screenshot %s", path)
	}

	if bbox != nil {
		img, err = cropToBBox(img, bbox)
		if err != nil {
			return err
		}
	}
	img = resizeToCap(img)

	out, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "could not rewrite screenshot %s", path)
	}
	defer out.Close()
	if err := png.Encode(out, img); err != nil {
		return errors.Wrapf(err, "could not encode screenshot %s", path)
	}
	return nil
}

// cropToBBox crops to either {x1,y1,x2,y2} or {x,y,width,height},
// clamped to the image bounds.
func cropToBBox(img image.Image, bbox map[string]interface{}) (image.Image, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	var left, top, right, bottom int
	x1, okX1 := bboxInt(bbox, "x1")
	y1, okY1 := bboxInt(bbox, "y1")
	x2, okX2 := bboxInt(bbox, "x2")
	y2, okY2 := bboxInt(bbox, "y2")
	x, okX := bboxInt(bbox, "x")
	y, okY := bboxInt(bbox, "y")
	w, okW := bboxInt(bbox, "width")
	h, okH := bboxInt(bbox, "height")

	switch {
	case okX1 && okY1 && okX2 && okY2:
		left, top = max(0, x1), max(0, y1)
		right, bottom = min(width, x2), min(height, y2)
	case okX && okY && okW && okH:
		left, top = max(0, x), max(0, y)
		right, bottom = min(width, x+w), min(height, y+h)
	default:
		return nil, errors.New("bbox must contain either 'x','y','width','height' or 'x1','y1','x2','y2'")
	}

	if left >= right || top >= bottom {
		return nil, errors.New("invalid bbox coordinates: left=%d, top=%d, right=%d, bottom=%d", left, top, right, bottom)
	}

	dst := image.NewRGBA(image.Rect(0, 0, right-left, bottom-top))
	draw.Draw(dst, dst.Bounds(), img, b.Min.Add(image.Pt(left, top)), draw.Src)
	return dst, nil
}

// resizeToCap downscales to targetPixels preserving aspect ratio.
// Smaller images pass through untouched.
func resizeToCap(img image.Image) image.Image {
	b := img.Bounds()
	pixels := b.Dx() * b.Dy()
	if pixels <= targetPixels {
		return img
	}

	scale := math.Sqrt(float64(targetPixels) / float64(pixels))
	newW := int(float64(b.Dx()) * scale)
	newH := int(float64(b.Dy()) * scale)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// bboxInt reads one bbox field; JSON numbers arrive as float64.
func bboxInt(bbox map[string]interface{}, key string) (int, bool) {
	switch v := bbox[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// capture dispatches to the platform capture utility.
func capture(ctx context.Context, path string) error {
	switch {
	case runtime.GOOS == "darwin":
		return runCapture(ctx, path, "screencapture", "-x", path)
	case isWSL():
		return captureWSL(ctx, path)
	case runtime.GOOS == "linux":
		return captureLinux(ctx, path)
	default:
		return errors.New("screenshots are not supported on %s", runtime.GOOS)
	}
}

// captureLinux tries the common Linux capture utilities in order.
func captureLinux(ctx context.Context, path string) error {
	candidates := [][]string{
		{"gnome-screenshot", "-f", path},
		{"scrot", path},
		{"import", "-window", "root", path}, // ImageMagick
	}
	var lastErr error
	for _, c := range candidates {
		if _, err := exec.LookPath(c[0]); err != nil {
			continue
		}
		if err := runCapture(ctx, path, c[0], c[1:]...); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return errors.New("no screenshot utility found (tried gnome-screenshot, scrot, import)")
}

// captureWSL shells out to Windows PowerShell. The image is written to a
// path PowerShell can resolve, then moved into place.
func captureWSL(ctx context.Context, path string) error {
	const powershell = "/mnt/c/Windows/System32/WindowsPowerShell/v1.0/powershell.exe"
	tmpName := fmt.Sprintf("capture_%s.png", uuid.New().String()[:8])
	winPath := `$env:TEMP + '\` + tmpName + `'`
	script := `Add-Type -AssemblyName System.Windows.Forms,System.Drawing; ` +
		`$b = [System.Windows.Forms.Screen]::PrimaryScreen.Bounds; ` +
		`$bmp = New-Object System.Drawing.Bitmap($b.Width, $b.Height); ` +
		`$g = [System.Drawing.Graphics]::FromImage($bmp); ` +
		`$g.CopyFromScreen(0, 0, 0, 0, $b.Size); ` +
		`$out = ` + winPath + `; ` +
		`$bmp.Save($out, [System.Drawing.Imaging.ImageFormat]::Png); ` +
		`$g.Dispose(); $bmp.Dispose(); ` +
		`Write-Output $env:TEMP`
	out, err := exec.CommandContext(ctx, powershell, "-NoProfile", "-Command", script).Output()
	if err != nil {
		return errors.Wrapf(err, "PowerShell screenshot failed")
	}

	winTemp := strings.TrimSpace(string(out))
	wslTemp := windowsToWSLPath(winTemp)
	src := filepath.Join(wslTemp, tmpName)
	if err := os.Rename(src, path); err != nil {
		// Rename fails across filesystems; fall back to copy.
		data, readErr := os.ReadFile(src)
		if readErr != nil {
			return errors.Wrapf(err, "could not move screenshot from %s", src)
		}
		os.Remove(src)
		return os.WriteFile(path, data, 0644)
	}
	return nil
}

func runCapture(ctx context.Context, path, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "%s failed. Output:\n%s", name, string(out))
	}
	return nil
}

// isWSL detects Windows Subsystem for Linux via the kernel release string.
func isWSL() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	data, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "microsoft")
}

// windowsToWSLPath converts C:\Users\... to /mnt/c/Users/...
func windowsToWSLPath(winPath string) string {
	winPath = strings.TrimSpace(winPath)
	if len(winPath) < 2 || winPath[1] != ':' {
		return winPath
	}
	drive := strings.ToLower(winPath[:1])
	rest := strings.ReplaceAll(winPath[2:], `\`, "/")
	return "/mnt/" + drive + rest
}
