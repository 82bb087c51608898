package vision

import "fmt"

// cocoLabels классы COCO в нумерации TensorFlow Object Detection API (id-1).
// Пустые строки соответствуют неиспользуемым идентификаторам.
var cocoLabels = [...]string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat", "traffic light",
	"fire hydrant", "", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse", "sheep",
	"cow", "elephant", "bear", "zebra", "giraffe", "", "backpack", "umbrella", "", "",
	"handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "couch", "potted plant", "bed", "", "dining table", "", "", "toilet",
	"", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone", "microwave", "oven", "toaster",
	"sink", "refrigerator", "", "book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

func cocoLabel(classID int) string {
	if classID >= 0 && classID < len(cocoLabels) && cocoLabels[classID] != "" {
		return cocoLabels[classID]
	}
	return fmt.Sprintf("class_%d", classID)
}
