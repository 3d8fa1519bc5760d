package rollout

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Manifest holds the parsed documents of one multi-document YAML
// manifest file.
type Manifest struct {
	docs []yaml.MapSlice
}

func ParseManifest(content []byte) (*Manifest, error) {
	manifest := &Manifest{}
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	for {
		var doc yaml.MapSlice
		err := decoder.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "Failed to parse manifest")
		}
		if len(doc) > 0 {
			manifest.docs = append(manifest.docs, doc)
		}
	}
	return manifest, nil
}

func (m *Manifest) Bytes() ([]byte, error) {
	buf := &bytes.Buffer{}
	for i, doc := range m.docs {
		if i > 0 {
			buf.WriteString("---\n")
		}
		content, err := yaml.Marshal(doc)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to serialize manifest")
		}
		buf.Write(content)
	}
	return buf.Bytes(), nil
}

// DeploymentNames lists the rollout targets declared in the manifest.
func (m *Manifest) DeploymentNames() []string {
	names := []string{}
	for _, doc := range m.docs {
		if lookupString(doc, "kind") != "Deployment" {
			continue
		}
		metadata, ok := lookupMap(doc, "metadata")
		if !ok {
			continue
		}
		if name := lookupString(metadata, "name"); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// SetImage rewrites the image reference of every container in every
// Deployment document to the per-run tag.
func (m *Manifest) SetImage(imageRef string) {
	for i, doc := range m.docs {
		if lookupString(doc, "kind") != "Deployment" {
			continue
		}
		m.docs[i] = rewriteImages(doc, imageRef)
	}
}

func rewriteImages(node yaml.MapSlice, imageRef string) yaml.MapSlice {
	for i, item := range node {
		key, ok := item.Key.(string)
		if !ok {
			continue
		}
		switch value := item.Value.(type) {
		case yaml.MapSlice:
			node[i].Value = rewriteImages(value, imageRef)
		case []interface{}:
			if key != "containers" && key != "initContainers" {
				continue
			}
			for j, element := range value {
				container, ok := element.(yaml.MapSlice)
				if !ok {
					continue
				}
				for k, field := range container {
					if field.Key == "image" {
						container[k].Value = imageRef
					}
				}
				value[j] = container
			}
		}
	}
	return node
}

func lookupString(node yaml.MapSlice, key string) string {
	for _, item := range node {
		if item.Key == key {
			if value, ok := item.Value.(string); ok {
				return value
			}
		}
	}
	return ""
}

func lookupMap(node yaml.MapSlice, key string) (yaml.MapSlice, bool) {
	for _, item := range node {
		if item.Key == key {
			if value, ok := item.Value.(yaml.MapSlice); ok {
				return value, true
			}
		}
	}
	return nil, false
}
