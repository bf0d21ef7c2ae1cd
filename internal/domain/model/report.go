package model

// DeliveryReport accounts for one fan-out. Partial delivery is normal at
// scale; the report exists for observability, not for error propagation.
type DeliveryReport struct {
	Topic     Topic
	Attempted int
	Delivered int
	Failed    int
	Filtered  int
}

func (r DeliveryReport) Complete() bool { return r.Failed == 0 }
