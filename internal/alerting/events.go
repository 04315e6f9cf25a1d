package alerting

// TopicAlertCreated carries a *models.Alert for every alert that is
// actually inserted; suppressed alerts never reach the bus.
const TopicAlertCreated = "alerting.alert.created"
