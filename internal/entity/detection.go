package entity

// BoundingBox 检测框（像素坐标，左上角 + 宽高）
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Detection 单个检测对象
type Detection struct {
	Class      string      `json:"class"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

// DetectionRecord is the sidecar document stored next to an image as
// "<key>.det.json". It is overwritten on every re-detection.
type DetectionRecord struct {
	ImageFilename string      `json:"image_filename"`
	UpdatedAt     string      `json:"updated_at"`
	Model         string      `json:"model"`
	Fallback      bool        `json:"fallback"`
	Results       []Detection `json:"results"`
	Count         int         `json:"count"`
}

// DetectRequest JSON 检测请求
type DetectRequest struct {
	ImageID uint `json:"image_id"`
}
