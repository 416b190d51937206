package models

type ConsumerConfig struct {
	Brokers        []string
	Name           string
	Topic          string
	RecordsPerPoll int
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
}
