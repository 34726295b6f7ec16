package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/vislabel/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

// Register binds every step of the API suite.
func (tc *TestContext) Register(sc *godog.ScenarioContext) {
	sc.Step(`^the demo server is running with labels "([^"]*)" and probabilities "([^"]*)"$`, tc.demoServerIsRunning)
	sc.Step(`^the demo server is running with labels "([^"]*)" and probabilities "([^"]*)" and an upload limit of (\d+) MB$`,
		tc.demoServerIsRunningWithUploadLimit)
	sc.Step(`^the classifier fails with "([^"]*)"$`, tc.classifierFailsWith)

	sc.Step(`^I request "([^"]*)" "([^"]*)"$`, tc.iRequest)
	sc.Step(`^I upload a (png|jpeg) image "([^"]*)" to "([^"]*)"$`, tc.iUploadImage)
	sc.Step(`^I upload a (png|jpeg) image "([^"]*)" to "([^"]*)" with label "([^"]*)"$`, tc.iUploadImageWithLabel)
	sc.Step(`^I upload the bytes "([^"]*)" as "([^"]*)" with type "([^"]*)" to "([^"]*)"$`, tc.iUploadBytes)
	sc.Step(`^I upload a file of (\d+) MB as "([^"]*)" to "([^"]*)"$`, tc.iUploadLargeFile)

	sc.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	sc.Step(`^the response status should be (\d+) or (\d+)$`, tc.theResponseStatusShouldBeEither)
	sc.Step(`^the response should contain "([^"]*)"$`, tc.theResponseShouldContain)
	sc.Step(`^the response header "([^"]*)" should not be empty$`, tc.theHeaderShouldNotBeEmpty)
	sc.Step(`^the response header "([^"]*)" should contain "([^"]*)"$`, tc.theHeaderShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, tc.theJSONFieldShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should have (\d+) items?$`, tc.theJSONFieldShouldHaveItems)

	sc.Step(`^I connect to the WebSocket endpoint$`, tc.iConnectToWebSocket)
	sc.Step(`^I send a (png|jpeg) snapshot$`, tc.iSendSnapshot)
	sc.Step(`^I send the frame "([^"]*)"$`, tc.iSendBinaryFrame)
	sc.Step(`^I choose the label "([^"]*)" over the WebSocket$`, tc.iChooseLabelOverWebSocket)
	sc.Step(`^the WebSocket field "([^"]*)" should be "([^"]*)"$`, tc.theWebSocketFieldShouldBe)
	sc.Step(`^the WebSocket field "([^"]*)" should have (\d+) items?$`, tc.theWebSocketFieldShouldHaveItems)
}

func (tc *TestContext) url(path string) (string, error) {
	if tc.Server == nil {
		return "", errors.New("server is not running")
	}
	return tc.Server.URL + path, nil
}

func (tc *TestContext) do(req *http.Request) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	tc.LastStatus = resp.StatusCode
	tc.LastHeaders = resp.Header
	tc.LastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) iRequest(method, path string) error {
	u, err := tc.url(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

func encodeImage(kind string) ([]byte, string, error) {
	img := testutil.SolidImage(16, 12, color.NRGBA{R: 30, G: 60, B: 90, A: 255})
	var buf bytes.Buffer
	if kind == "jpeg" {
		if err := jpeg.Encode(&buf, img, nil); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/png", nil
}

func (tc *TestContext) upload(path, filename, contentType string, data []byte, fields map[string]string) error {
	u, err := tc.url(path)
	if err != nil {
		return err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return tc.do(req)
}

func (tc *TestContext) iUploadImage(kind, filename, path string) error {
	return tc.iUploadImageWithLabel(kind, filename, path, "")
}

func (tc *TestContext) iUploadImageWithLabel(kind, filename, path, label string) error {
	data, ct, err := encodeImage(kind)
	if err != nil {
		return err
	}
	var fields map[string]string
	if label != "" {
		fields = map[string]string{"label": label}
	}
	return tc.upload(path, filename, ct, data, fields)
}

func (tc *TestContext) iUploadBytes(data, filename, contentType, path string) error {
	return tc.upload(path, filename, contentType, []byte(data), nil)
}

func (tc *TestContext) iUploadLargeFile(mb int, filename, path string) error {
	return tc.upload(path, filename, "image/png", bytes.Repeat([]byte{0xff}, mb*1024*1024), nil)
}

func (tc *TestContext) theResponseStatusShouldBe(status int) error {
	if tc.LastStatus != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, tc.LastStatus, tc.LastBody)
	}
	return nil
}

func (tc *TestContext) theResponseStatusShouldBeEither(a, b int) error {
	if tc.LastStatus != a && tc.LastStatus != b {
		return fmt.Errorf("expected status %d or %d, got %d", a, b, tc.LastStatus)
	}
	return nil
}

func (tc *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(string(tc.LastBody), text) {
		return fmt.Errorf("response does not contain %q: %s", text, tc.LastBody)
	}
	return nil
}

func (tc *TestContext) theHeaderShouldNotBeEmpty(name string) error {
	if tc.LastHeaders.Get(name) == "" {
		return fmt.Errorf("header %s is empty", name)
	}
	return nil
}

func (tc *TestContext) theHeaderShouldContain(name, want string) error {
	if got := tc.LastHeaders.Get(name); !strings.Contains(got, want) {
		return fmt.Errorf("header %s = %q, want it to contain %q", name, got, want)
	}
	return nil
}

func (tc *TestContext) theJSONFieldShouldBe(path, want string) error {
	doc, err := decode(tc.LastBody)
	if err != nil {
		return err
	}
	return fieldEquals(doc, path, want)
}

func (tc *TestContext) theJSONFieldShouldHaveItems(path string, n int) error {
	doc, err := decode(tc.LastBody)
	if err != nil {
		return err
	}
	return fieldHasItems(doc, path, n)
}

func (tc *TestContext) iConnectToWebSocket() error {
	if tc.Server == nil {
		return errors.New("server is not running")
	}
	u := "ws" + strings.TrimPrefix(tc.Server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}
	tc.WS = conn
	return nil
}

func (tc *TestContext) exchange(messageType int, data []byte) error {
	if tc.WS == nil {
		return errors.New("not connected")
	}
	if err := tc.WS.WriteMessage(messageType, data); err != nil {
		return err
	}
	if err := tc.WS.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	_, reply, err := tc.WS.ReadMessage()
	if err != nil {
		return err
	}
	frame, err := decode(reply)
	if err != nil {
		return err
	}
	tc.LastFrame = frame
	return nil
}

func (tc *TestContext) iSendSnapshot(kind string) error {
	data, _, err := encodeImage(kind)
	if err != nil {
		return err
	}
	return tc.exchange(websocket.BinaryMessage, data)
}

func (tc *TestContext) iSendBinaryFrame(data string) error {
	return tc.exchange(websocket.BinaryMessage, []byte(data))
}

func (tc *TestContext) iChooseLabelOverWebSocket(label string) error {
	msg, err := json.Marshal(map[string]string{"type": "label", "label": label})
	if err != nil {
		return err
	}
	return tc.exchange(websocket.TextMessage, msg)
}

func (tc *TestContext) theWebSocketFieldShouldBe(path, want string) error {
	return fieldEquals(tc.LastFrame, path, want)
}

func (tc *TestContext) theWebSocketFieldShouldHaveItems(path string, n int) error {
	return fieldHasItems(tc.LastFrame, path, n)
}

func decode(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w: %s", err, data)
	}
	return doc, nil
}

// lookup walks a dotted path such as "result.ranked.0.label".
func lookup(doc map[string]any, path string) (any, error) {
	var cur any = doc
	for _, key := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[key]
			if !ok {
				return nil, fmt.Errorf("field %q not found", path)
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(v) {
				return nil, fmt.Errorf("index %q out of range in %q", key, path)
			}
			cur = v[i]
		default:
			return nil, fmt.Errorf("field %q not found", path)
		}
	}
	return cur, nil
}

func fieldEquals(doc map[string]any, path, want string) error {
	v, err := lookup(doc, path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("field %s = %q, want %q", path, got, want)
	}
	return nil
}

func fieldHasItems(doc map[string]any, path string, n int) error {
	v, err := lookup(doc, path)
	if err != nil {
		return err
	}
	list, ok := v.([]any)
	if !ok {
		return fmt.Errorf("field %s is not a list", path)
	}
	if len(list) != n {
		return fmt.Errorf("field %s has %d items, want %d", path, len(list), n)
	}
	return nil
}
