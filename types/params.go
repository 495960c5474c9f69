package types

// Params contains client launch parameters, passed to the container as environment
// variables. Tests usually define common parameters as a global variable and then
// customize them for specific clients.
type Params map[string]string

// Set returns a copy of the parameters with 'key' set to 'value'.
func (p Params) Set(key, value string) Params {
	cpy := p.Copy()
	cpy[key] = value
	return cpy
}

// Copy returns a copy of the parameters.
func (p Params) Copy() Params {
	cpy := make(Params, len(p))
	for k, v := range p {
		cpy[k] = v
	}
	return cpy
}
