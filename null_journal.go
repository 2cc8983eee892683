package sferror

func NewNullJournal() Journal {
	return &NullJournal{}
}

type NullJournal struct {
}

func (j *NullJournal) Record(string, error) error {
	return nil
}

func (j *NullJournal) Pending() ([]string, error) {
	return nil, nil
}

func (j *NullJournal) Remove(string) error {
	return nil
}
