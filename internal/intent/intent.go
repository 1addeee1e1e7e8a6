// Package intent models the platform's broadcast message: an action name,
// optional delivery restrictions, and a bag of primitive extras. Intercepted
// call arguments and relay messages share this shape.
package intent

// ComponentName identifies an explicit receiver.
type ComponentName struct {
	Package string
	Class   string
}

// FlattenToString renders the component as "package/class".
func (c ComponentName) FlattenToString() string {
	return c.Package + "/" + c.Class
}

// Intent is a broadcast message. Zero values mean "not set".
type Intent struct {
	Action     string
	Package    string
	Component  *ComponentName
	Type       string
	Data       string
	Flags      int
	Categories []string
	Extras     *Bundle
}

// New returns an intent for action with an empty extras bundle.
func New(action string) *Intent {
	return &Intent{Action: action, Extras: NewBundle()}
}

// PutExtra stores a value, allocating the bundle if needed.
func (i *Intent) PutExtra(key string, value any) *Intent {
	if i.Extras == nil {
		i.Extras = NewBundle()
	}
	i.Extras.Put(key, value)
	return i
}

// SetPackage restricts delivery to receivers in pkg.
func (i *Intent) SetPackage(pkg string) *Intent {
	i.Package = pkg
	return i
}
