package adb

import (
	"bytes"
	"encoding/xml"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tapsum/tapsum/internal/models"
)

// ParseEventLine parses one line of "uiautomator events" output into a
// RawEvent. Lines that are not accessibility events return nil.
//
// A line looks like:
//
//	07-16 10:45:01.123 EventType: TYPE_VIEW_CLICKED; EventTime: 55255339;
//	PackageName: com.android.settings; ContentDescription: Wi-Fi;
//	Text: [Network & internet]; ...
func ParseEventLine(line string) *models.RawEvent {
	idx := strings.Index(line, "EventType:")
	if idx < 0 {
		return nil
	}

	fields := parseFields(line[idx:])

	evType := fields["EventType"]
	pkg := fields["PackageName"]
	if evType == "" || pkg == "" || pkg == "null" {
		return nil
	}

	ev := &models.RawEvent{
		Type:        evType,
		PackageName: pkg,
		Timestamp:   time.Now(),
	}

	if desc := fields["ContentDescription"]; desc != "" && desc != "null" {
		ev.Description = desc
	} else if text := firstTextEntry(fields["Text"]); text != "" {
		// uiautomator inlines visible text; use it as the source node
		// so the classifier's preference order still applies.
		node := models.AcquireNode()
		node.Text = text
		node.Clickable = true
		ev.Source = node
	}

	return ev
}

// parseFields splits "Key: value; Key: value" pairs.
func parseFields(s string) map[string]string {
	fields := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields
}

// firstTextEntry extracts the first entry of a "[a, b, c]" list.
func firstTextEntry(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return ""
	}
	s = s[1 : len(s)-1]
	if i := strings.Index(s, ","); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// xmlNode mirrors the uiautomator dump format.
type xmlNode struct {
	Text          string    `xml:"text,attr"`
	ResourceID    string    `xml:"resource-id,attr"`
	ContentDesc   string    `xml:"content-desc,attr"`
	Clickable     string    `xml:"clickable,attr"`
	Focusable     string    `xml:"focusable,attr"`
	LongClickable string    `xml:"long-clickable,attr"`
	Children      []xmlNode `xml:"node"`
}

type xmlHierarchy struct {
	XMLName xml.Name  `xml:"hierarchy"`
	Nodes   []xmlNode `xml:"node"`
}

// ParseHierarchy parses a uiautomator dump document into a pooled node
// tree. The caller owns the tree and must release it.
func ParseHierarchy(data []byte) (*models.Node, error) {
	// The dump tool appends a status line after the XML document.
	if i := bytes.LastIndex(data, []byte("</hierarchy>")); i >= 0 {
		data = data[:i+len("</hierarchy>")]
	}
	if i := bytes.Index(data, []byte("<?xml")); i > 0 {
		data = data[i:]
	}

	var doc xmlHierarchy
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse hierarchy dump")
	}
	if len(doc.Nodes) == 0 {
		return nil, errors.New("hierarchy dump contains no nodes")
	}

	root := models.AcquireNode()
	for i := range doc.Nodes {
		root.Children = append(root.Children, convertNode(&doc.Nodes[i]))
	}
	return root, nil
}

func convertNode(x *xmlNode) *models.Node {
	n := models.AcquireNode()
	n.Text = x.Text
	n.ViewID = x.ResourceID
	n.Description = x.ContentDesc
	n.Clickable = x.Clickable == "true"
	n.Focusable = x.Focusable == "true"
	n.LongClickable = x.LongClickable == "true"
	for i := range x.Children {
		n.Children = append(n.Children, convertNode(&x.Children[i]))
	}
	return n
}
