// Package media общая медиа подсистема коммутатора.
//
// Handle создается на сессию и содержит по одному Stream на включенный тип
// медиа (аудио, видео). Stream проставляет RTP заголовки исходящим кадрам,
// читает входящие через Transport и, если задана глубина, пропускает их
// через JitterBuffer.
//
// Транспорты:
//   - LoopbackTransport очередь в памяти, пакеты возвращаются отправителю
//   - UDPTransport UDP сокет, отправляющий пакеты на собственный адрес
//
// Способ передачи DTMF выбирается NegotiateDTMFType по удаленному SDP и
// переменной канала dtmf_type.
package media
