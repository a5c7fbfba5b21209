package prompt

import "uiforge/internal/types"

// requirements holds the acceptance criteria appended to the UI builder and
// UI critic roles once the task's category is known.
var requirements = map[types.ProblemCategory]string{
	types.CategoryTextClassification: `Requirements for text classification tasks:
- Provide a multi-line text area for the input text and disable submit while it is empty.
- Send the text in the JSON body using the exact input key from the blueprint.
- The response is a nested list of {label, score} objects; flatten it, sort by score descending and show every label with its score as a percentage bar.`,

	types.CategoryImageClassification: `Requirements for image classification tasks:
- Accept jpg and png uploads through a file input with drag and drop, and show a preview of the selected image.
- Read the file with FileReader, strip the data URL prefix and send the image as a base64 string under the input key from the blueprint.
- Show the predicted labels sorted by probability, highlight the top prediction and render each probability as a bar.`,

	types.CategoryObjectDetection: `Requirements for object detection tasks:
- Accept an image upload, show it on a canvas and keep its natural size for coordinate scaling.
- Send the image as a base64 string under the input key from the blueprint.
- Draw every returned bounding box with its label and score on the canvas, scaled to the displayed size, and list the detections in a table below.`,

	types.CategoryTabularQA: `Requirements for tabular question answering tasks:
- Accept a CSV upload or pasted table, render it as an HTML table and provide a text input for the question.
- Send the table as a JSON object of column name to list of cell strings together with the question.
- Show the answer prominently and, when the response lists cell coordinates, highlight those cells in the rendered table.`,

	types.CategoryAudioClassification: `Requirements for audio classification tasks:
- Accept wav, mp3 and flac uploads and provide an audio element to play the selected file.
- Send the audio as a base64 string under the input key from the blueprint.
- Show the predicted labels sorted by score with a percentage bar for each.`,
}

// CategoryRequirement returns the requirement text for a category. Unknown
// categories, and known categories without an entry, yield ("", false).
func CategoryRequirement(c types.ProblemCategory) (string, bool) {
	if !c.Known() {
		return "", false
	}
	r, ok := requirements[c]
	return r, ok
}
