package render

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// gofpdf emits image XObjects in map iteration order whenever two images
// share a pixel width, so the same pages can produce different files.
// orderImages renumbers the image objects by resource name, which depends
// only on image content.

var (
	xobjectRef  = regexp.MustCompile(`/I([0-9a-f]+) (\d+) 0 R`)
	imagePrefix = []byte("<</Type /XObject\n/Subtype /Image\n")
)

// resourceObject is the shared resource dictionary gofpdf writes as object 2.
const resourceObject = 2

type pdfObject struct {
	num        int
	start, end int
}

func (o pdfObject) body(doc []byte) []byte {
	span := doc[o.start:o.end]
	return span[bytes.IndexByte(span, '\n')+1:]
}

// orderImages returns doc with its image objects numbered in ascending
// resource-name order. Documents it cannot parse as plain gofpdf output are
// rejected; documents whose images reference other objects are returned
// unchanged.
func orderImages(doc []byte) ([]byte, error) {
	objs, trailer, tail, err := parseLayout(doc)
	if err != nil {
		return nil, err
	}

	byNum := make(map[int]pdfObject, len(objs))
	var images []int
	for _, o := range objs {
		byNum[o.num] = o
		body := o.body(doc)
		if !bytes.HasPrefix(body, imagePrefix) {
			continue
		}
		dict := body
		if i := bytes.Index(body, []byte("stream")); i >= 0 {
			dict = body[:i]
		}
		if bytes.Contains(dict, []byte(" 0 R")) {
			return doc, nil
		}
		images = append(images, o.num)
	}
	if len(images) < 2 {
		return doc, nil
	}

	res, ok := byNum[resourceObject]
	if !ok {
		return nil, errors.New("resource dictionary not found")
	}
	names := make(map[int]string, len(images))
	for _, m := range xobjectRef.FindAllSubmatch(res.body(doc), -1) {
		n, _ := strconv.Atoi(string(m[2]))
		names[n] = string(m[1])
	}
	for _, n := range images {
		if _, ok := names[n]; !ok {
			return doc, nil
		}
	}

	sorted := append([]int(nil), images...)
	sort.Slice(sorted, func(i, j int) bool { return names[sorted[i]] < names[sorted[j]] })
	slots := append([]int(nil), images...)
	sort.Ints(slots)

	renumber := make(map[int]int, len(images))
	source := make(map[int]int, len(images))
	identity := true
	for k, old := range sorted {
		renumber[old] = slots[k]
		source[slots[k]] = old
		if old != slots[k] {
			identity = false
		}
	}
	if identity {
		return doc, nil
	}

	var out bytes.Buffer
	out.Grow(len(doc))
	out.Write(doc[:objs[0].start])
	offsets := make(map[int]int, len(objs))
	for _, o := range objs {
		offsets[o.num] = out.Len()
		switch {
		case o.num == resourceObject:
			out.Write(xobjectRef.ReplaceAllFunc(doc[o.start:o.end], func(m []byte) []byte {
				sub := xobjectRef.FindSubmatch(m)
				n, _ := strconv.Atoi(string(sub[2]))
				if to, ok := renumber[n]; ok {
					n = to
				}
				return []byte(fmt.Sprintf("/I%s %d 0 R", sub[1], n))
			}))
		default:
			if from, ok := source[o.num]; ok {
				fmt.Fprintf(&out, "%d 0 obj\n", o.num)
				out.Write(byNum[from].body(doc))
				continue
			}
			out.Write(doc[o.start:o.end])
		}
	}

	size := len(objs) + 1
	newXref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", size)
	for n := 1; n < size; n++ {
		fmt.Fprintf(&out, "%010d 00000 n \n", offsets[n])
	}
	out.Write(trailer)
	fmt.Fprintf(&out, "startxref\n%d", newXref)
	out.Write(tail)
	return out.Bytes(), nil
}

// parseLayout reads the classic cross-reference table gofpdf writes and
// returns every object's byte span in file order, the trailer dictionary
// text and the bytes after the startxref offset.
func parseLayout(doc []byte) ([]pdfObject, []byte, []byte, error) {
	const startxref = "startxref\n"
	at := bytes.LastIndex(doc, []byte(startxref))
	if at < 0 {
		return nil, nil, nil, errors.New("startxref not found")
	}
	numStart := at + len(startxref)
	numEnd := bytes.IndexByte(doc[numStart:], '\n')
	if numEnd < 0 {
		return nil, nil, nil, errors.New("truncated startxref")
	}
	numEnd += numStart
	xrefAt, err := strconv.Atoi(string(doc[numStart:numEnd]))
	if err != nil || xrefAt <= 0 || xrefAt >= at {
		return nil, nil, nil, fmt.Errorf("bad startxref offset %q", doc[numStart:numEnd])
	}

	p := xrefAt
	line := func() ([]byte, error) {
		i := bytes.IndexByte(doc[p:], '\n')
		if i < 0 {
			return nil, errors.New("truncated xref table")
		}
		l := doc[p : p+i]
		p += i + 1
		return l, nil
	}
	if l, err := line(); err != nil || string(l) != "xref" {
		return nil, nil, nil, errors.New("xref table not found")
	}
	l, err := line()
	if err != nil {
		return nil, nil, nil, err
	}
	var first, size int
	if _, err := fmt.Sscanf(string(l), "%d %d", &first, &size); err != nil || first != 0 || size < 1 {
		return nil, nil, nil, fmt.Errorf("bad xref subsection %q", l)
	}

	objs := make([]pdfObject, 0, size-1)
	for n := 0; n < size; n++ {
		l, err := line()
		if err != nil {
			return nil, nil, nil, err
		}
		if n == 0 {
			continue
		}
		if len(l) < 10 {
			return nil, nil, nil, fmt.Errorf("bad xref entry %q", l)
		}
		off, err := strconv.Atoi(string(l[:10]))
		if err != nil || off <= 0 || off >= xrefAt {
			return nil, nil, nil, fmt.Errorf("bad xref entry %q", l)
		}
		objs = append(objs, pdfObject{num: n, start: off})
	}

	sort.Slice(objs, func(i, j int) bool { return objs[i].start < objs[j].start })
	for i := range objs {
		if i+1 < len(objs) {
			objs[i].end = objs[i+1].start
		} else {
			objs[i].end = xrefAt
		}
		want := fmt.Sprintf("%d 0 obj\n", objs[i].num)
		if !bytes.HasPrefix(doc[objs[i].start:objs[i].end], []byte(want)) {
			return nil, nil, nil, fmt.Errorf("object %d not at its xref offset", objs[i].num)
		}
	}
	return objs, doc[p:at], doc[numEnd:], nil
}
