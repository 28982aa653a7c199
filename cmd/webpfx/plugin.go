package main

import (
	"github.com/pkg/errors"
)

var (
	ErrMissingArgument = errors.New("missing argument")
	ErrUnknownFunction = errors.New("unknown function")
)

// Args carries named filter parameters in and out of plugin functions.
type Args map[string]interface{}

func (a Args) VideoNode(key string) (*VideoNode, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, errors.Wrapf(ErrMissingArgument, "'%s'", key)
	}

	node, ok := v.(*VideoNode)
	if !ok || node == nil {
		return nil, errors.Errorf("argument '%s' is not a video node (%T)", key, v)
	}
	return node, nil
}

func (a Args) UTF8(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", errors.Wrapf(ErrMissingArgument, "'%s'", key)
	}

	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", errors.Errorf("argument '%s' is not a string (%T)", key, v)
	}
}

func (a Args) Int(key string) (int64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, errors.Wrapf(ErrMissingArgument, "'%s'", key)
	}

	switch i := v.(type) {
	case int:
		return int64(i), nil
	case int32:
		return int64(i), nil
	case int64:
		return i, nil
	case bool:
		if i {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errors.Errorf("argument '%s' is not an integer (%T)", key, v)
	}
}

// CreateFunc builds a node from its arguments and returns it in the output
// Args under "clip".
type CreateFunc func(in Args, core *Core) (Args, error)

type PluginFunction struct {
	Name       string
	ArgsSpec   string
	ReturnSpec string
	Create     CreateFunc
}

type Plugin struct {
	Identifier  string
	Namespace   string
	Description string
	Functions   map[string]*PluginFunction
}

func (c *Core) RegisterPlugin(p *Plugin) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.plugins[p.Namespace]; exists {
		return errors.Errorf("plugin namespace '%s' already registered", p.Namespace)
	}
	c.plugins[p.Namespace] = p

	logger.
		WithField("plugin", p.Identifier).
		WithField("namespace", p.Namespace).
		Debugf("Registered plugin: %s", p.Description)
	return nil
}

// Invoke calls a plugin function by namespace and name.
func (c *Core) Invoke(namespace, function string, in Args) (Args, error) {
	c.mu.RLock()
	p, ok := c.plugins[namespace]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFunction, "no plugin with namespace '%s'", namespace)
	}

	fn, ok := p.Functions[function]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFunction, "%s.%s", namespace, function)
	}

	out, err := fn.Create(in, c)
	if err != nil {
		return nil, errors.Wrapf(err, "%s.%s", namespace, function)
	}
	return out, nil
}
