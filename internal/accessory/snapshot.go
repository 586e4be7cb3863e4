package accessory

// CharacteristicView is the JSON shape of one characteristic.
type CharacteristicView struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Format      Format    `json:"format"`
	Unit        Unit      `json:"unit,omitempty"`
	Perms       []string  `json:"perms"`
	ValidValues []float64 `json:"valid_values,omitempty"`
	Value       any       `json:"value"`
}

// ServiceView is the JSON shape of one service.
type ServiceView struct {
	ID              string               `json:"id"`
	Type            string               `json:"type"`
	Characteristics []CharacteristicView `json:"characteristics"`
}

// View is the JSON shape of the whole accessory.
type View struct {
	Name         string        `json:"name"`
	Manufacturer string        `json:"manufacturer"`
	Model        string        `json:"model"`
	Services     []ServiceView `json:"services"`
}

// View returns the characteristic's definition together with its current value.
func (c *Characteristic) View() CharacteristicView {
	// Write-only characteristics have no readable value.
	var value any
	if c.def.Perms.Has(PermRead) {
		value = c.Value()
	}
	return CharacteristicView{
		ID:          c.def.ID,
		Type:        c.def.Type.String(),
		Description: c.def.Description,
		Format:      c.def.Format,
		Unit:        c.def.Unit,
		Perms:       c.def.Perms.Strings(),
		ValidValues: c.def.ValidValues,
		Value:       value,
	}
}

// Snapshot returns the whole tree with current values. Values are read one
// characteristic at a time, so a snapshot taken during a refresh may mix old
// and new readings across characteristics.
func (a *Accessory) Snapshot() View {
	v := View{
		Name:         a.info.Name,
		Manufacturer: a.info.Manufacturer,
		Model:        a.info.Model,
		Services:     make([]ServiceView, 0, len(a.services)),
	}
	for _, svc := range a.services {
		sv := ServiceView{ID: svc.ID, Type: svc.Type.String()}
		for _, c := range svc.Characteristics {
			sv.Characteristics = append(sv.Characteristics, c.View())
		}
		v.Services = append(v.Services, sv)
	}
	return v
}
