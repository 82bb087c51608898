package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"ecoregen/internal/domain/entity"
)

// MaxPixels предел площади изображения. Растр хранит float64 на канал,
// поэтому 50 Мп с четырьмя каналами уже занимают около 1.6 ГБ.
const MaxPixels = 50_000_000

var ErrTooLarge = errors.New("image is too large")

// checkSize отклоняет пустые изображения и изображения больше MaxPixels.
func checkSize(cfg image.Config) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("image has zero size")
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, MaxPixels)
	}
	return nil
}

// Open декодирует изображение любого зарегистрированного формата.
// Тип image.Image сохраняется как есть, без приведения к NRGBA.
// Размер проверяется по заголовку до декодирования пикселей.
func Open(path string) (image.Image, error) {
	if err := checkFileSize(path); err != nil {
		return nil, err
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return img, nil
}

// DetectFormat проверяет, что данные являются изображением известного формата,
// и возвращает расширение файла для него.
func DetectFormat(data []byte) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unsupported image: %w", err)
	}
	if err := checkSize(cfg); err != nil {
		return "", err
	}
	if format == "jpeg" {
		return ".jpg", nil
	}
	return "." + format, nil
}

// ReadRaster декодирует файл в многоканальный растр.
func ReadRaster(path string) (*entity.Raster, error) {
	img, err := Open(path)
	if err != nil {
		return nil, err
	}
	return ToRaster(img), nil
}

func checkFileSize(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("read image header %s: %w", path, err)
	}
	return checkSize(cfg)
}

// ToRaster раскладывает изображение по каналам.
//
// Gray и Gray16 дают один канал. NRGBA и NRGBA64 всегда дают четыре канала
// (четвёртый канал может хранить NIR). RGBA и RGBA64 дают три канала, если
// изображение непрозрачное, иначе четыре с отменой предумножения. Палитра
// разворачивается в RGB или RGBA. Остальные модели приводятся к RGB.
func ToRaster(img image.Image) *entity.Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		r := entity.NewRaster(w, h, 1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r.Set(x, y, 0, float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
		return r

	case *image.Gray16:
		r := entity.NewRaster(w, h, 1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r.Set(x, y, 0, float64(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
		return r

	case *image.NRGBA:
		r := entity.NewRaster(w, h, 4)
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w*4]
			for x := 0; x < w; x++ {
				for c := 0; c < 4; c++ {
					r.Set(x, y, c, float64(row[x*4+c]))
				}
			}
		}
		return r

	case *image.NRGBA64:
		r := entity.NewRaster(w, h, 4)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				px := src.NRGBA64At(b.Min.X+x, b.Min.Y+y)
				setPixel(r, x, y, float64(px.R), float64(px.G), float64(px.B), float64(px.A))
			}
		}
		return r

	case *image.RGBA64:
		channels := 4
		if src.Opaque() {
			channels = 3
		}
		r := entity.NewRaster(w, h, channels)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				px := color.NRGBA64Model.Convert(src.RGBA64At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				setPixel(r, x, y, float64(px.R), float64(px.G), float64(px.B), float64(px.A))
			}
		}
		return r

	case *image.Paletted:
		channels := 3
		for _, c := range src.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				channels = 4
				break
			}
		}
		return fromNRGBA(img, channels)

	case *image.RGBA:
		if src.Opaque() {
			return fromNRGBA(img, 3)
		}
		return fromNRGBA(img, 4)

	default:
		return fromNRGBA(img, 3)
	}
}

// fromNRGBA приводит каждый пиксель к NRGBA и берёт первые channels каналов.
func fromNRGBA(img image.Image, channels int) *entity.Raster {
	b := img.Bounds()
	r := entity.NewRaster(b.Dx(), b.Dy(), channels)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			setPixel(r, x, y, float64(px.R), float64(px.G), float64(px.B), float64(px.A))
		}
	}
	return r
}

func setPixel(r *entity.Raster, x, y int, values ...float64) {
	for c := 0; c < r.Channels; c++ {
		r.Set(x, y, c, values[c])
	}
}

// SavePNG кодирует изображение в PNG без потерь, создавая родительские каталоги.
// Формат не зависит от расширения пути.
func SavePNG(img image.Image, path string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output file: %w", cerr)
		}
	}()

	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
